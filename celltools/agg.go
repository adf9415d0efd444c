package celltools

import "fmt"

// AggFunc reduces the pixel values that fall in one S2 cell.
type AggFunc func(...float64) float64

func Mean(inData ...float64) float64 {
	sum := Sum(inData...)
	return sum / float64(len(inData))
}

func Sum(inData ...float64) float64 {
	var sum float64
	for _, val := range inData {
		sum += val
	}
	return sum
}

func Max(inData ...float64) float64 {
	max := inData[0]
	for _, val := range inData[1:] {
		if val > max {
			max = val
		}
	}
	return max
}

func Min(inData ...float64) float64 {
	min := inData[0]
	for _, val := range inData[1:] {
		if val < min {
			min = val
		}
	}
	return min
}

// AggFuncByName maps a flag value to its AggFunc.
func AggFuncByName(name string) (AggFunc, error) {
	switch name {
	case "mean":
		return Mean, nil
	case "sum":
		return Sum, nil
	case "max":
		return Max, nil
	case "min":
		return Min, nil
	default:
		return nil, fmt.Errorf("aggregation function %q not recognized, choose from: mean, sum, max, min", name)
	}
}
