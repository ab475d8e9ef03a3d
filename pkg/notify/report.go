package notify

// Report summarises a sequence of URL results.
type Report struct {
	Results    []URLResult `json:"results"`
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
}

// Aggregate counts the results that succeeded on at least one channel.
// It never mutates its input.
func Aggregate(results []URLResult) Report {
	report := Report{
		Results: results,
		Total:   len(results),
	}
	for _, r := range results {
		if r.Succeeded() {
			report.Successful++
		}
	}
	report.Failed = report.Total - report.Successful
	return report
}
