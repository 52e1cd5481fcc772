package segment

// TraditionalBackends returns the traditional methods in the order they are
// tried: rectangle-seeded cut (OpenCV GrabCut in gocv builds), multi-scale
// edge fill, and color clustering.
func TraditionalBackends() []Backend {
	return []Backend{cutBackend(), NewEdgeFill(), NewColorCluster()}
}

// RegisterTraditional adds the traditional methods and the last-resort
// threshold to reg. They have no fusion weight.
func RegisterTraditional(reg *Registry) {
	for _, b := range TraditionalBackends() {
		reg.Register(b, KindTraditional, 0, "")
	}
	reg.Register(Threshold{}, KindFallback, 0, "")
}
