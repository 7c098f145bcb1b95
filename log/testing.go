package log

// TB is the subset of testing.TB used by the test logger.
type TB interface {
	Errorf(string, ...interface{})
	Logf(string, ...interface{})
	Helper()
}

// Testing routes engine logs into a test's output and fails the test on
// error-level messages.
type Testing struct {
	TB
	Tags []interface{}
}

func (l *Testing) Debug(m string, kv ...interface{}) {
	l.Helper()
	l.Logf("%s", line("DEBUG ", m, kv, l.Tags))
}

func (l *Testing) Info(m string, kv ...interface{}) {
	l.Helper()
	l.Logf("%s", line("INFO  ", m, kv, l.Tags))
}

func (l *Testing) Error(m string, kv ...interface{}) {
	l.Helper()
	l.Errorf("%s", line("ERROR ", m, kv, l.Tags))
}

func (l *Testing) With(tags ...interface{}) Logger {
	t := make([]interface{}, 0, len(tags)+len(l.Tags))
	t = append(t, tags...)
	t = append(t, l.Tags...)
	return &Testing{l.TB, t}
}
