package notifier

// Notification event names.
const (
	EventWelcome     = "user.welcome"
	EventNewPassword = "user.new_password"
)

// Dispatcher sends a named notification event to one recipient. It returns
// whether the recipient was reached; callers treat a false result or an error
// as a hard failure of the triggering operation.
type Dispatcher interface {
	Dispatch(event, recipient string, payload map[string]string) (bool, error)
}
