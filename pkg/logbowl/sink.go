package logbowl

// ToolSink routes the output of an external tool through the logger. Stdout
// lines are logged at INFO and stderr lines at WARN, both under the tool's
// domain.
type ToolSink struct {
	log    Logger
	domain string
	tool   string
}

// ProcessSink returns a sink for the output of the named tool.
func (l Logger) ProcessSink(domain, tool string) ToolSink {
	return ToolSink{log: l, domain: domain, tool: tool}
}

func (s ToolSink) Stdout(line string) {
	s.log.Info(s.domain, "output", "progress", line, "tool", s.tool)
}

func (s ToolSink) Stderr(line string) {
	s.log.Warn(s.domain, "output", "warning", line, "tool", s.tool)
}
