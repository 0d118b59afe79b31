package upload

// SegmentCount returns the number of fixed-size segments covering a payload
// of the given size.
func SegmentCount(size, partSize int64) int {
	if size <= 0 || partSize <= 0 {
		return 0
	}
	return int((size + partSize - 1) / partSize)
}

// SegmentRange returns the byte range of segment index (1-based): the offset
// into the payload and the segment length. The last segment may be short.
func SegmentRange(index int, size, partSize int64) (offset, length int64) {
	offset = int64(index-1) * partSize
	length = partSize
	if offset+length > size {
		length = size - offset
	}
	return offset, length
}
