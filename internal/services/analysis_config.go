package services

// AnalysisConfig holds configuration for game analysis
type AnalysisConfig struct {
	StockfishPath  string
	StockfishDepth int
	CloudEnabled   bool
}

// AnalyzeOptions tunes a single analysis run. Progress, when set, is
// called synchronously after each evaluated ply with a percentage in
// [0,100] and a short status message; values are non-decreasing within
// one run. A nil Progress never changes the result.
type AnalyzeOptions struct {
	Depth    int
	UseCloud bool
	Quick    bool
	Progress func(percent float64, message string)
}

func (o AnalyzeOptions) report(percent float64, message string) {
	if o.Progress != nil {
		o.Progress(percent, message)
	}
}
