package jobs

// Worker count limits
const (
	MinWorkers = 1
	MaxWorkers = 6
)

// Synthetic frame count limits per analysis
const (
	MinSteps = 1
	MaxSteps = 600
)

// maxResults bounds how many finished analyses are held in memory.
const maxResults = 64

// ClampWorkerCount ensures the worker count is within valid bounds.
func ClampWorkerCount(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// ClampSteps ensures the frame count is within valid bounds.
func ClampSteps(n int) int {
	if n < MinSteps {
		return MinSteps
	}
	if n > MaxSteps {
		return MaxSteps
	}
	return n
}

// IsValidSteps returns true if the frame count is within valid bounds.
func IsValidSteps(n int) bool {
	return n >= MinSteps && n <= MaxSteps
}
