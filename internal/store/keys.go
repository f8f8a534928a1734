package store

const (
	jobPrefix        = "batch:job:"
	resultsPrefix    = "batch:results:"
	chunksPrefix     = "batch:chunks:"
	statsPrefix      = "batch:stats:"
	progressPrefix   = "batch:progress:"
	validationPrefix = "validation:"
)

func JobKey(id string) string     { return jobPrefix + id }
func ResultsKey(id string) string { return resultsPrefix + id }
func ChunksKey(id string) string  { return chunksPrefix + id }
func StatsKey(id string) string   { return statsPrefix + id }

// ProgressChannel is the pub/sub channel carrying progress messages of a job.
func ProgressChannel(id string) string { return progressPrefix + id }

// CacheKey is validation:{canonical key}:{check fingerprint}.
func CacheKey(canonicalKey, fingerprint string) string {
	return validationPrefix + canonicalKey + ":" + fingerprint
}
