package jobs

// RouteQueueClass assigns a book to one of the three executor pools.
// spec.md names the heavy/normal/light CLI flag but leaves the routing
// rule itself unspecified (an Open Question resolved in DESIGN.md): we
// route by book length, the same signal the teacher uses to size its own
// worker concurrency for long-running OCR jobs — a short book should not
// queue behind a long one on a shared pool.
func RouteQueueClass(chapterCount int) QueueClass {
	switch {
	case chapterCount > 60:
		return QueueHeavy
	case chapterCount > 15:
		return QueueNormal
	default:
		return QueueLight
	}
}
