package pipeline

// Phase is the orchestrator's state-machine position. Failed is reachable
// from every non-idle phase; Done only through Generating.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseExtractingFile Phase = "extracting_file"
	PhaseCrawling       Phase = "crawling"
	PhaseGenerating     Phase = "generating"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)
