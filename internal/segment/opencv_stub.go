//go:build !gocv

package segment

func cutBackend() Backend { return NewRegionCut() }
