package refresh

// Waiting reports how many callers are attached to the in-flight renewal.
func (c *Coordinator) Waiting() int {
	return int(c.waiting.Load())
}
