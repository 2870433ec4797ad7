package metrics

import "time"

// TranscriptResolved records one resolved transcript, dimensioned by how it
// was obtained: "cache", "youtube" or "whisper". Every speech-to-text
// backend reports "whisper"; SpeechToText carries the backend name.
func TranscriptResolved(source string) {
	New(Namespace).
		Dimension("Source", source).
		Count("TranscriptResolved").
		Flush()
}

// SpeechToText records the latency and input size of one transcription call.
func SpeechToText(backend string, elapsed time.Duration, bytes int64, ok bool) {
	r := New(Namespace).
		Dimension("Backend", backend).
		Duration("SpeechToTextMs", elapsed).
		Metric("SpeechToTextBytes", float64(bytes), UnitBytes)
	if !ok {
		r.Count("SpeechToTextErrors")
	}
	r.Flush()
}

// ExtractionRecords records how many records one extraction produced.
func ExtractionRecords(profile string, n int, cached bool) {
	New(Namespace).
		Dimension("Profile", profile).
		Metric("ExtractionRecords", float64(n), UnitCount).
		Property("cached", cached).
		Flush()
}

// Aggregation records the latency of one synthesis call.
func Aggregation(profile string, elapsed time.Duration, items int) {
	New(Namespace).
		Dimension("Profile", profile).
		Duration("AggregationMs", elapsed).
		Metric("AggregationItems", float64(items), UnitCount).
		Flush()
}
