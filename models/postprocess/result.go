package postprocess

import "github.com/nvr-ai/go-tensordecode/models/model"

// Truncate returns at most n leading detections. A non-positive n returns dets unchanged.
func Truncate(dets []model.Detection, n int) []model.Detection {
	if n <= 0 || len(dets) <= n {
		return dets
	}
	return dets[:n]
}
