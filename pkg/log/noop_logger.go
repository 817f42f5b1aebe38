package log

var _ Logger = NoopLogger{}

// NoopLogger discards everything. Useful as a default in tests and as the
// fallback when no logger is found in a context.
type NoopLogger struct{}

func NewNoopLogger() NoopLogger { return NoopLogger{} }

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}
func (NoopLogger) Fatal(string, ...any) {}

func (n NoopLogger) WithName(string) Logger { return n }

func (NoopLogger) Name() string { return "" }

func (n NoopLogger) WithKV(...any) Logger { return n }

func (NoopLogger) GetAllKV() []any { return nil }

func (n NoopLogger) AddCallerSkip(int) Logger { return n }
