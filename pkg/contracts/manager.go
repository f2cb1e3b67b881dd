package contracts

// SecurityManager throttles request admission per client key. Rejected
// attempts are recorded alongside admitted ones so a client cannot
// reset its own window by bursting.
type SecurityManager interface {
	Allow(identifier string) bool
	AllowN(identifier string, limit int) bool
	IsLoginBlocked(identifier string) bool
	RecordFailedLogin(identifier string)
	ClearLoginAttempts(identifier string)
}

// Notifier delivers out-of-band messages (verification links, reset
// links). Implementations must never surface delivery failures to the
// auth flow that triggered them.
type Notifier interface {
	Notify(recipient, subject, body string)
}
