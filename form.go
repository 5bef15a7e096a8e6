package sessionkit

import (
	"sync"
	"time"

	"github.com/tijariwise/sessionkit/credential"
	"github.com/tijariwise/sessionkit/internal/debounce"
)

// Field identifies a login form field.
type Field string

const (
	// FieldEmail is the email input.
	FieldEmail Field = "email"
	// FieldPassword is the password input.
	FieldPassword Field = "password"
)

// FieldState is the user-visible validity of one field.
type FieldState uint8

const (
	// FieldIdle means the field is empty and shows no verdict.
	FieldIdle FieldState = iota
	// FieldValidating means input arrived and a verdict is pending.
	FieldValidating
	// FieldValid means the latest committed evaluation passed.
	FieldValid
	// FieldInvalid means the latest committed evaluation failed; an error
	// message is always present in this state.
	FieldInvalid
)

func (s FieldState) String() string {
	switch s {
	case FieldIdle:
		return "idle"
	case FieldValidating:
		return "validating"
	case FieldValid:
		return "valid"
	case FieldInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// FormEventType classifies events emitted to the form listener.
type FormEventType uint8

const (
	// EventStateChanged reports a field state transition.
	EventStateChanged FormEventType = iota
	// EventErrorShown asks the surface to animate the error into view.
	EventErrorShown
	// EventShake asks the surface to play the rejection feedback on submit.
	EventShake
)

// FormEvent is delivered to the listener on every observable transition.
// Field is empty for form-wide events such as EventShake.
type FormEvent struct {
	Type    FormEventType
	Field   Field
	State   FieldState
	Message string
}

// Form drives the debounced per-field validation state machine for the login
// screen. Safe for concurrent use; listener callbacks may arrive on timer
// goroutines.
type Form struct {
	mu       sync.Mutex
	sched    *debounce.Scheduler
	windows  map[Field]time.Duration
	values   map[Field]string
	states   map[Field]FieldState
	messages map[Field]string
	listener func(FormEvent)
	metrics  *Metrics
}

// NewForm creates a form with the given debounce windows. listener may be nil.
func NewForm(cfg ValidationConfig, metrics *Metrics, listener func(FormEvent)) *Form {
	if cfg.EmailDebounce <= 0 {
		cfg.EmailDebounce = 500 * time.Millisecond
	}
	if cfg.PasswordDebounce <= 0 {
		cfg.PasswordDebounce = 300 * time.Millisecond
	}
	if listener == nil {
		listener = func(FormEvent) {}
	}
	return &Form{
		sched: debounce.NewScheduler(),
		windows: map[Field]time.Duration{
			FieldEmail:    cfg.EmailDebounce,
			FieldPassword: cfg.PasswordDebounce,
		},
		values:   map[Field]string{},
		states:   map[Field]FieldState{FieldEmail: FieldIdle, FieldPassword: FieldIdle},
		messages: map[Field]string{},
		listener: listener,
		metrics:  metrics,
	}
}

func validatorFor(field Field) func(string) *credential.FieldError {
	if field == FieldPassword {
		return credential.ValidatePassword
	}
	return credential.ValidateEmail
}

// SetInput feeds one keystroke-level value change into the machine.
//
// Empty input commits Idle immediately; anything else shows Validating and
// schedules an evaluation after the field's quiet window. Only the evaluation
// scheduled by the most recent input is ever committed.
func (f *Form) SetInput(field Field, value string) {
	f.mu.Lock()
	f.values[field] = value

	if value == "" {
		// Emptiness is decided instantly, no debounce.
		f.sched.Cancel(string(field))
		event := f.transitionLocked(field, FieldIdle, "")
		f.mu.Unlock()
		f.emit(event)
		return
	}

	event := f.transitionLocked(field, FieldValidating, "")
	window := f.windows[field]
	f.mu.Unlock()
	f.emit(event)

	superseded := f.sched.Schedule(string(field), window, func() {
		f.commitEvaluation(field, value)
	})
	if superseded {
		f.metrics.Inc(MetricValidationSuperseded)
	}
}

// commitEvaluation runs when a scheduled evaluation fires un-superseded.
func (f *Form) commitEvaluation(field Field, value string) {
	verdict := validatorFor(field)(value)

	f.mu.Lock()
	if f.values[field] != value {
		// A newer value landed between firing and locking; its own
		// evaluation owns the next commit.
		f.mu.Unlock()
		f.metrics.Inc(MetricValidationSuperseded)
		return
	}

	var event *FormEvent
	var invalid bool
	if verdict == nil {
		event = f.transitionLocked(field, FieldValid, "")
	} else {
		event = f.transitionLocked(field, FieldInvalid, verdict.Message)
		invalid = true
	}
	f.mu.Unlock()

	f.metrics.Inc(MetricValidationCommitted)
	f.emit(event)
	if invalid {
		f.emit(&FormEvent{Type: EventErrorShown, Field: field, State: FieldInvalid, Message: verdict.Message})
	}
}

// transitionLocked mutates state and returns the event to emit, or nil when
// nothing changed. Callers hold f.mu.
func (f *Form) transitionLocked(field Field, state FieldState, message string) *FormEvent {
	if f.states[field] == state && f.messages[field] == message {
		return nil
	}
	f.states[field] = state
	if message == "" {
		delete(f.messages, field)
	} else {
		f.messages[field] = message
	}
	return &FormEvent{Type: EventStateChanged, Field: field, State: state, Message: message}
}

func (f *Form) emit(event *FormEvent) {
	if event != nil {
		f.listener(*event)
	}
}

// State returns the current state and error message of a field.
func (f *Form) State(field Field) (FieldState, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[field], f.messages[field]
}

// Values returns the current raw input values.
func (f *Form) Values() (email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[FieldEmail], f.values[FieldPassword]
}

// Validate re-validates both fields synchronously for submission. Pending
// debounce evaluations are cancelled; their verdicts could only duplicate the
// ones committed here.
//
// Returns true when both fields pass. On failure both terminal states are
// committed, a shake event is emitted, and submission must be aborted.
func (f *Form) Validate() bool {
	f.mu.Lock()
	email := f.values[FieldEmail]
	password := f.values[FieldPassword]
	f.sched.Cancel(string(FieldEmail))
	f.sched.Cancel(string(FieldPassword))

	ok := true
	var events []*FormEvent
	for field, verdict := range map[Field]*credential.FieldError{
		FieldEmail:    credential.ValidateEmail(email),
		FieldPassword: credential.ValidatePassword(password),
	} {
		if verdict == nil {
			events = append(events, f.transitionLocked(field, FieldValid, ""))
			continue
		}
		ok = false
		events = append(events, f.transitionLocked(field, FieldInvalid, verdict.Message))
		events = append(events, &FormEvent{Type: EventErrorShown, Field: field, State: FieldInvalid, Message: verdict.Message})
	}
	f.mu.Unlock()

	for _, event := range events {
		f.emit(event)
	}
	if !ok {
		f.metrics.Inc(MetricSubmitRejected)
		f.emit(&FormEvent{Type: EventShake})
	}
	return ok
}

// Close stops all pending evaluations. The form must not be used afterwards.
func (f *Form) Close() {
	f.sched.Close()
}
