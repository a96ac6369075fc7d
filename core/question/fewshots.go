package question

import (
	"math/rand"
	"strings"
)

// fewShot is one primer example injected into the generation prompt to anchor
// the model's style and mark distribution.
type fewShot struct {
	Question string   `json:"question"`
	Topics   []string `json:"topic"`
	Marks    int      `json:"marks"`
}

const fewShotCutoff = 0.6

var exampleBank = []fewShot{
	{
		Question: "Implement the Hough Transform from scratch to detect straight lines in a binary edge-detected image. Visualize the accumulator space and draw the detected lines over the original image.",
		Topics:   []string{"Hough Transform", "Edge Detection", "Feature Extraction"},
		Marks:    7,
	},
	{
		Question: "Apply a 3x3 Gaussian kernel to a grayscale image by hand for a given 5x5 patch, showing all intermediate products, and explain the effect of increasing the kernel's standard deviation.",
		Topics:   []string{"Convolution", "Gaussian Filtering", "Digital Image Processing"},
		Marks:    5,
	},
	{
		Question: "Derive the backpropagation update for a single convolutional layer with a 3x3 filter and stride 1, and explain how parameter sharing reduces the number of learnable weights.",
		Topics:   []string{"Convolutional Neural Networks", "Backpropagation"},
		Marks:    8,
	},
	{
		Question: "Compare the FAST and Harris corner detectors in terms of repeatability, computational cost, and sensitivity to noise. Support your comparison with results on a provided image pair.",
		Topics:   []string{"FAST", "Harris Corner Detection", "Feature Extraction"},
		Marks:    6,
	},
	{
		Question: "Explain how the SIFT descriptor achieves scale and rotation invariance, then match keypoints between two images of the same scene taken at different scales.",
		Topics:   []string{"SIFT", "Feature Matching", "Scale Invariance"},
		Marks:    7,
	},
	{
		Question: "Implement Otsu's method for automatic threshold selection and compare its segmentation output against a manually chosen threshold on a bimodal histogram image.",
		Topics:   []string{"Segmentation", "Thresholding", "Digital Image Processing"},
		Marks:    5,
	},
	{
		Question: "Describe the architecture of a typical convolutional neural network for image classification, explaining the role of pooling layers and why deeper networks use residual connections.",
		Topics:   []string{"Convolutional Neural Networks", "Computer Vision", "Deep Learning"},
		Marks:    6,
	},
	{
		Question: "Compute the fundamental matrix between two calibrated views from eight point correspondences and explain the role of the epipolar constraint in stereo matching.",
		Topics:   []string{"Epipolar Geometry", "Stereo Vision", "Camera Calibration"},
		Marks:    8,
	},
}

var fallbackTopics = []string{"computer vision", "convolutional neural networks"}

// selectFewShots picks up to k bank examples relevant to the user's topics.
// Topic relevance uses the fuzzy cutoff so close spellings still match; when
// nothing matches, a default topic set and finally the whole bank serve.
func selectFewShots(topics []string, k int) []fewShot {
	known := knownTopics()

	var matched []string
	for _, t := range topics {
		matched = append(matched, closeMatches(t, known, fewShotCutoff)...)
	}

	filtered := filterByTopics(matched)
	if len(filtered) == 0 {
		filtered = filterByTopics(fallbackTopics)
	}
	if len(filtered) == 0 {
		filtered = exampleBank
	}

	if k > len(filtered) {
		k = len(filtered)
	}
	picked := make([]fewShot, len(filtered))
	copy(picked, filtered)
	rand.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return picked[:k]
}

func knownTopics() []string {
	seen := make(map[string]struct{})
	var all []string
	for _, q := range exampleBank {
		for _, t := range q.Topics {
			t = strings.ToLower(t)
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				all = append(all, t)
			}
		}
	}
	return all
}

func filterByTopics(topics []string) []fewShot {
	if len(topics) == 0 {
		return nil
	}
	var filtered []fewShot
	for _, q := range exampleBank {
		if hasAnyTopic(q, topics) {
			filtered = append(filtered, q)
		}
	}
	return filtered
}

func hasAnyTopic(q fewShot, topics []string) bool {
	for _, qt := range q.Topics {
		for _, t := range topics {
			if strings.EqualFold(qt, t) {
				return true
			}
		}
	}
	return false
}
