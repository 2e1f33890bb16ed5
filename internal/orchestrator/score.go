package orchestrator

import "github.com/docmill/recognition-worker/internal/engine"

// acceptanceScore judges one concrete result: was this particular answer good
// enough to stop trying more engines. Deliberately a different formula from
// the historical ranking score - ranking predicts, acceptance judges.
//
// confidence*0.5 + timeEfficiency*0.2 + min(1, wordsPerSecond/50)*0.3
func acceptanceScore(res engine.Result) float64 {
	timeEfficiency := 1.0 - res.Duration.Seconds()/speedReference.Seconds()
	if timeEfficiency < 0 {
		timeEfficiency = 0
	}

	var wps float64
	if secs := res.Duration.Seconds(); secs > 0 {
		wps = float64(res.WordCount) / secs
	}
	throughput := wps / 50
	if throughput > 1 {
		throughput = 1
	}

	return res.Confidence*0.5 + timeEfficiency*0.2 + throughput*0.3
}

// sampleFromResult converts an attempt outcome into a quality sample.
func sampleFromResult(res engine.Result) QualitySample {
	return QualitySample{
		Confidence: res.Confidence,
		Duration:   res.Duration,
		WordCount:  res.WordCount,
		CharCount:  res.CharCount,
		Success:    res.Success,
	}
}
