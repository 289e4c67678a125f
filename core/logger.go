package core

// Logger is any service that can log leveled messages along with
// arbitrary context args (errors, maps, the acting user...).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the acting user in log context args.
type Actor struct {
	ID    string
	Email string
}
