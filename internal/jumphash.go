package internal

import "github.com/zeebo/xxh3"

// Bucket maps key onto one of buckets with Jump consistent hashing.
// Growing buckets by one moves only about 1/buckets of the keys.
// It returns 0 when buckets is not positive.
func Bucket(key string, buckets int) int {
	return jump(xxh3.HashString(key), buckets)
}

// jump is Google's "Jump" Consistent Hash, https://arxiv.org/abs/1406.2294
func jump(h uint64, buckets int) int {
	if buckets <= 0 {
		return 0
	}

	var b, j int64 = -1, 0
	for j < int64(buckets) {
		b = j
		h = h*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((h>>33)+1)))
	}
	return int(b)
}
