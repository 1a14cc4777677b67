package batch

// Chunk splits items into consecutive groups of width; the last group may
// be shorter. Order is preserved.
func Chunk[T any](items []T, width int) [][]T {
	if width <= 0 {
		width = DefaultWidth
	}
	chunks := make([][]T, 0, (len(items)+width-1)/width)
	for start := 0; start < len(items); start += width {
		end := min(start+width, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
