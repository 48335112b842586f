package mot

import "sort"

// MatchingAlgorithm is for algorithm type for matching detections to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy uses a greedy algorithm for faster but potentially suboptimal assignment.
	// Each track (in index order) takes the best remaining detection, so total cost is not guaranteed to be minimal.
	MatchingAlgorithmGreedy
)

// String returns algorithm name
func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmHungarian:
		return "hungarian"
	case MatchingAlgorithmGreedy:
		return "greedy"
	default:
		return "unknown"
	}
}

// ParseMatchingAlgorithm converts name into MatchingAlgorithm
func ParseMatchingAlgorithm(name string) (MatchingAlgorithm, bool) {
	switch name {
	case "hungarian", "":
		return MatchingAlgorithmHungarian, true
	case "greedy":
		return MatchingAlgorithmGreedy, true
	default:
		return MatchingAlgorithmHungarian, false
	}
}

// Match is a pair of indices into the arrays of predicted track boxes and detection boxes of a single frame
type Match struct {
	TrackIndex     int
	DetectionIndex int
	IoU            float64
}

// Association is the result of matching single frame: three disjoint sets of indices
type Association struct {
	Matches             []Match
	UnmatchedTracks     []int
	UnmatchedDetections []int
}

// AssociationEngine matches predicted track boxes with detection boxes by IoU
type AssociationEngine struct {
	// Pairs with IoU below threshold are rejected
	IoUThreshold float64
	// Algorithm to use for matching
	Algorithm MatchingAlgorithm
}

// NewAssociationEngine creates a new instance of AssociationEngine
func NewAssociationEngine(iouThreshold float64, algorithm MatchingAlgorithm) *AssociationEngine {
	return &AssociationEngine{
		IoUThreshold: iouThreshold,
		Algorithm:    algorithm,
	}
}

// IoUMatrix creates N x M matrix of IoU values: rows = tracks, columns = detections
func IoUMatrix(trackBBoxes, detectionBBoxes []Rectangle) [][]float64 {
	iouMatrix := make([][]float64, len(trackBBoxes))
	for i, trkBox := range trackBBoxes {
		row := make([]float64, len(detectionBBoxes))
		for j, detBox := range detectionBBoxes {
			row[j] = IoU(trkBox, detBox)
		}
		iouMatrix[i] = row
	}
	return iouMatrix
}

// CostMatrix converts IoU matrix into cost matrix (cost = 1 - IoU)
func CostMatrix(iouMatrix [][]float64) [][]float64 {
	costMatrix := make([][]float64, len(iouMatrix))
	for i, row := range iouMatrix {
		costRow := make([]float64, len(row))
		for j, iouVal := range row {
			costRow[j] = 1.0 - iouVal
		}
		costMatrix[i] = costRow
	}
	return costMatrix
}

// Associate matches predicted track boxes with detection boxes.
// Every track index and every detection index appears exactly once in the result.
func (engine *AssociationEngine) Associate(trackBBoxes, detectionBBoxes []Rectangle) Association {
	numTracks := len(trackBBoxes)
	numDetections := len(detectionBBoxes)
	result := Association{
		Matches:             make([]Match, 0),
		UnmatchedTracks:     make([]int, 0),
		UnmatchedDetections: make([]int, 0),
	}
	if numTracks == 0 || numDetections == 0 {
		for i := 0; i < numTracks; i++ {
			result.UnmatchedTracks = append(result.UnmatchedTracks, i)
		}
		for j := 0; j < numDetections; j++ {
			result.UnmatchedDetections = append(result.UnmatchedDetections, j)
		}
		return result
	}

	iouMatrix := IoUMatrix(trackBBoxes, detectionBBoxes)
	var pairs [][2]int
	switch engine.Algorithm {
	case MatchingAlgorithmGreedy:
		pairs = performGreedyMatching(iouMatrix)
	default:
		pairs = performHungarianMatching(iouMatrix, engine.IoUThreshold)
	}

	matchedTracks := make([]bool, numTracks)
	matchedDetections := make([]bool, numDetections)
	for _, pair := range pairs {
		trackIdx, detIdx := pair[0], pair[1]
		if matchedTracks[trackIdx] || matchedDetections[detIdx] {
			continue
		}
		iouVal := iouMatrix[trackIdx][detIdx]
		// Low overlap pairs are dropped: both sides become unmatched
		if !isAcceptedIoU(iouVal, engine.IoUThreshold) {
			continue
		}
		matchedTracks[trackIdx] = true
		matchedDetections[detIdx] = true
		result.Matches = append(result.Matches, Match{
			TrackIndex:     trackIdx,
			DetectionIndex: detIdx,
			IoU:            iouVal,
		})
	}
	sort.Slice(result.Matches, func(i, j int) bool {
		return result.Matches[i].TrackIndex < result.Matches[j].TrackIndex
	})
	for i, matched := range matchedTracks {
		if !matched {
			result.UnmatchedTracks = append(result.UnmatchedTracks, i)
		}
	}
	for j, matched := range matchedDetections {
		if !matched {
			result.UnmatchedDetections = append(result.UnmatchedDetections, j)
		}
	}
	return result
}

// performHungarianMatching finds assignment with maximum total IoU among pairs passing the threshold.
// Pairs below threshold (or without overlap) cost the same as staying unmatched, so they never displace a valid pair.
// Returns: a slice of [2]int, where each element is {trackIndex, detectionIndex}.
func performHungarianMatching(iouMatrix [][]float64, iouThreshold float64) [][2]int {
	numTracks := len(iouMatrix)
	if numTracks == 0 || len(iouMatrix[0]) == 0 {
		return [][2]int{}
	}
	numDetections := len(iouMatrix[0])
	costMatrix := CostMatrix(iouMatrix)

	// Rectangular matrix - pad to make it square.
	// Dummy cells and rejected pairs get cost 1.0 (zero IoU)
	paddedSize := maxInt(numTracks, numDetections)
	paddedMatrix := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		paddedMatrix[i] = make([]float64, paddedSize)
		for j := 0; j < paddedSize; j++ {
			paddedMatrix[i][j] = 1.0
			if i < numTracks && j < numDetections && isAcceptedIoU(iouMatrix[i][j], iouThreshold) {
				paddedMatrix[i][j] = costMatrix[i][j]
			}
		}
	}

	assignment := solveAssignment(paddedMatrix)
	matches := make([][2]int, 0, minInt(numTracks, numDetections))
	for trackIndex := 0; trackIndex < numTracks; trackIndex++ {
		detectionIndex := assignment[trackIndex]
		// Assignments to dummy columns and rejected pairs are ignored
		if detectionIndex >= numDetections || !isAcceptedIoU(iouMatrix[trackIndex][detectionIndex], iouThreshold) {
			continue
		}
		matches = append(matches, [2]int{trackIndex, detectionIndex})
	}
	return matches
}

func isAcceptedIoU(iouVal, iouThreshold float64) bool {
	return iouVal > 0 && iouVal >= iouThreshold
}

// performGreedyMatching is helper function for greedy matching.
func performGreedyMatching(iouMatrix [][]float64) [][2]int {
	matches := make([][2]int, 0)
	numTracks := len(iouMatrix)
	if numTracks == 0 || len(iouMatrix[0]) == 0 {
		return matches
	}
	numDetections := len(iouMatrix[0])
	// Keep track of detection indices that are already matched
	matchedDetections := make([]bool, numDetections)
	for i := 0; i < numTracks; i++ {
		bestIoU := 0.0
		bestDetIdx := -1
		for j := 0; j < numDetections; j++ {
			if matchedDetections[j] {
				continue
			}
			if iouMatrix[i][j] > bestIoU {
				bestIoU = iouMatrix[i][j]
				bestDetIdx = j
			}
		}
		if bestDetIdx != -1 {
			matches = append(matches, [2]int{i, bestDetIdx})
			matchedDetections[bestDetIdx] = true
		}
	}
	return matches
}
