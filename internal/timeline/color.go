package timeline

// Bucket is a presentation color class.
type Bucket string

const (
	BucketCritical Bucket = "critical"
	BucketHigh     Bucket = "high"
	BucketMedium   Bucket = "medium"
	BucketLow      Bucket = "low"
	BucketUnknown  Bucket = "unknown"

	BucketDone       Bucket = "done"
	BucketInProgress Bucket = "in-progress"
	BucketStarted    Bucket = "started"
	BucketNotStarted Bucket = "not-started"
)

var bucketHex = map[Bucket]string{
	BucketCritical:   "#dc2626",
	BucketHigh:       "#f97316",
	BucketMedium:     "#eab308",
	BucketLow:        "#22c55e",
	BucketUnknown:    "#6b7280",
	BucketDone:       "#16a34a",
	BucketInProgress: "#ca8a04",
	BucketStarted:    "#2563eb",
	BucketNotStarted: "#4b5563",
}

// Hex returns the bucket's display color.
func (b Bucket) Hex() string {
	if h, ok := bucketHex[b]; ok {
		return h
	}
	return bucketHex[BucketUnknown]
}

// PriorityColor maps a priority name to its bucket.
func PriorityColor(priority string) Bucket {
	switch priority {
	case "critical":
		return BucketCritical
	case "high":
		return BucketHigh
	case "medium":
		return BucketMedium
	case "low":
		return BucketLow
	}
	return BucketUnknown
}

// CompletionColor maps a completion percentage to its bucket.
func CompletionColor(percent int) Bucket {
	switch {
	case percent >= 80:
		return BucketDone
	case percent >= 50:
		return BucketInProgress
	case percent > 0:
		return BucketStarted
	default:
		return BucketNotStarted
	}
}
