package workouts

import (
	"errors"
	"net/http"
)

var (
	ErrEmptyUsername = errors.New("username is empty")
	ErrEmptyPassword = errors.New("password is empty")
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrUsernameTaken = errors.New("username taken")

	ErrFieldCount    = errors.New("wrong number of fields")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidWeight = errors.New("weight is not a number")
	ErrInvalidReps   = errors.New("reps is not a number")
	ErrInvalidSets   = errors.New("sets is not a number")

	ErrWorkoutNotFound = errors.New("workout not found")
	ErrEmptyGroup      = errors.New("no workouts in group")
	ErrUnknownTag      = errors.New("unknown tag")
	ErrUnknownFocus    = errors.New("unknown focus")
	ErrNoData          = errors.New("no data yet")
	ErrNotNumeric      = errors.New("value is not numeric")
)

type failure struct {
	err     error
	code    int
	message string
}

// Credential codes and entry codes live in separate ranges of the same
// numbering, they are only meaningful next to the operation that returned them.
var failures = []failure{
	{ErrEmptyUsername, 0, "Please put in your username."},
	{ErrEmptyPassword, 1, "Please put in your password"},
	{ErrUserNotFound, 2, "There is no user by that Username, Please make an account, or try another username."},
	{ErrWrongPassword, 3, "Your username and password do not match"},
	{ErrUsernameTaken, 3, "That username is taken, please pick another."},
	{ErrFieldCount, 1, "You have added too many or too few variables, please match template exactly"},
	{ErrInvalidDate, 2, "One of your dates is not in a valid format, please match something like 12/12/2024"},
	{ErrInvalidWeight, 3, "You inputted a non-number for weight"},
	{ErrInvalidReps, 4, "You inputted a non-number for reps"},
	{ErrInvalidSets, 5, "You inputted a non-number for sets"},
}

var messages = map[error]string{
	ErrWorkoutNotFound: "Please input one of the available exercises",
	ErrNoData:          "This exercise doesn't have any data yet",
	ErrEmptyGroup:      "There are no exercises planned for that group",
}

// FailureCode maps a credential or log entry failure to its numeric code.
// ok is false for any other error.
func FailureCode(err error) (code int, ok bool) {
	for _, f := range failures {
		if errors.Is(err, f.err) {
			return f.code, true
		}
	}
	return -1, false
}

// IsUserFailure reports whether err is caused by user input rather than
// an internal problem.
func IsUserFailure(err error) bool {
	if _, ok := FailureCode(err); ok {
		return true
	}
	for e := range messages {
		if errors.Is(err, e) {
			return true
		}
	}
	return errors.Is(err, ErrUnknownTag) || errors.Is(err, ErrUnknownFocus) || errors.Is(err, ErrNotNumeric)
}

// Message returns the user facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, f := range failures {
		if errors.Is(err, f.err) {
			return f.message
		}
	}
	for e, msg := range messages {
		if errors.Is(err, e) {
			return msg
		}
	}
	if IsUserFailure(err) {
		return err.Error()
	}
	return "Something went wrong, please try again"
}

// Failure is the body returned to clients when an operation fails.
type Failure struct {
	OK      bool   `json:"ok"`
	Code    *int   `json:"code,omitempty"`
	Message string `json:"message"`
}

// FailureResponse maps err to an HTTP status and response body.
// User failures are 400s, anything else is an internal error.
func FailureResponse(err error) (int, Failure) {
	f := Failure{Message: Message(err)}
	if code, ok := FailureCode(err); ok {
		f.Code = &code
	}
	if IsUserFailure(err) {
		return http.StatusBadRequest, f
	}
	return http.StatusInternalServerError, f
}
