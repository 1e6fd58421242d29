package heuristics

import (
	"math"

	"github.com/straja-ai/fakescan/internal/media"
)

// reflect101 mirrors an out-of-range index without repeating the edge
// sample (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

func replicate(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// laplacianVariance applies the 4-neighbour Laplacian kernel and returns the
// population variance of the response.
func laplacianVariance(gray []uint8, w, h int) float64 {
	n := float64(w * h)
	var sum, sumSq float64
	for y := 0; y < h; y++ {
		up := reflect101(y-1, h) * w
		down := reflect101(y+1, h) * w
		row := y * w
		for x := 0; x < w; x++ {
			left := reflect101(x-1, w)
			right := reflect101(x+1, w)
			v := float64(int(gray[up+x]) + int(gray[down+x]) + int(gray[row+left]) + int(gray[row+right]) - 4*int(gray[row+x]))
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	return math.Max(variance, 0)
}

// canny returns the edge map of a 3-channel image. Gradients come from a 3x3
// Sobel on each channel with replicated borders; the channel with the largest
// L1 magnitude wins per pixel. Non-maximum suppression and 8-connected
// hysteresis follow the usual integer formulation.
func canny(img *media.Image, lowThresh, highThresh float64) []bool {
	w, h := img.Width, img.Height
	if lowThresh > highThresh {
		lowThresh, highThresh = highThresh, lowThresh
	}
	low := int(math.Floor(lowThresh))
	high := int(math.Floor(highThresh))

	dx := make([]int, w*h)
	dy := make([]int, w*h)
	// mag is padded by one on every side with zeros.
	mw := w + 2
	mag := make([]int, mw*(h+2))

	var px [3][3][3]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for j := -1; j <= 1; j++ {
				for i := -1; i <= 1; i++ {
					r, g, b := img.RGB(replicate(x+i, w), replicate(y+j, h))
					px[j+1][i+1] = [3]int{int(r), int(g), int(b)}
				}
			}
			best, bx, by := -1, 0, 0
			for c := 0; c < 3; c++ {
				gx := px[0][2][c] + 2*px[1][2][c] + px[2][2][c] - px[0][0][c] - 2*px[1][0][c] - px[2][0][c]
				gy := px[2][0][c] + 2*px[2][1][c] + px[2][2][c] - px[0][0][c] - 2*px[0][1][c] - px[0][2][c]
				m := abs(gx) + abs(gy)
				if m > best {
					best, bx, by = m, gx, gy
				}
			}
			dx[y*w+x] = bx
			dy[y*w+x] = by
			mag[(y+1)*mw+x+1] = best
		}
	}

	const (
		candidate = 1
		strong    = 2
	)
	// tan(22.5°) in Q15.
	const tg22 = 13573

	state := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		prev := y*mw + 1
		cur := (y+1)*mw + 1
		next := (y+2)*mw + 1
		for x := 0; x < w; x++ {
			m := mag[cur+x]
			if m <= low {
				continue
			}
			xs, ys := dx[y*w+x], dy[y*w+x]
			ax := abs(xs)
			ay := abs(ys) << 15
			tg22x := ax * tg22

			keep := false
			if ay < tg22x {
				keep = m > mag[cur+x-1] && m >= mag[cur+x+1]
			} else {
				tg67x := tg22x + (ax << 16)
				if ay > tg67x {
					keep = m > mag[prev+x] && m >= mag[next+x]
				} else {
					s := 1
					if (xs ^ ys) < 0 {
						s = -1
					}
					keep = m > mag[prev+x-s] && m > mag[next+x+s]
				}
			}
			if !keep {
				continue
			}
			if m > high {
				state[y*w+x] = strong
				stack = append(stack, y*w+x)
			} else {
				state[y*w+x] = candidate
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := i%w, i/w
		for j := -1; j <= 1; j++ {
			ny := cy + j
			if ny < 0 || ny >= h {
				continue
			}
			for k := -1; k <= 1; k++ {
				nx := cx + k
				if nx < 0 || nx >= w {
					continue
				}
				ni := ny*w + nx
				if state[ni] == candidate {
					state[ni] = strong
					stack = append(stack, ni)
				}
			}
		}
	}

	edges := make([]bool, w*h)
	for i, s := range state {
		edges[i] = s == strong
	}
	return edges
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
