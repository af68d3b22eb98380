package labels

// COCOClasses are the 91 class slots of TensorFlow SSD MobileNet COCO exports. Index 0
// is background and unused ids are "???".
var COCOClasses = []string{
	"???", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "???", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "???", "backpack", "umbrella", "???",
	"???", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat",
	"baseball glove", "skateboard", "surfboard", "tennis racket", "bottle", "???", "wine glass", "cup", "fork", "knife",
	"spoon", "bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza",
	"donut", "cake", "chair", "couch", "potted plant", "bed", "???", "dining table", "???", "???",
	"toilet", "???", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "???", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// FaceClasses are the classes of the two-label face detector.
var FaceClasses = []string{"__background__", "face"}

// PoseKeypoints are the 17 PoseNet keypoint names in channel order.
var PoseKeypoints = []string{
	"nose", "left eye", "right eye", "left ear", "right ear",
	"left shoulder", "right shoulder", "left elbow", "right elbow", "left wrist", "right wrist",
	"left hip", "right hip", "left knee", "right knee", "left ankle", "right ankle",
}

// COCO returns a table of COCOClasses.
func COCO() *Table {
	return New(COCOClasses...)
}
