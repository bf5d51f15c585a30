package queue

import (
	"encoding/json"
	"time"
)

// JobType identifies which worker a Job is destined for, and doubles as the
// name of the Redis list it travels on.
type JobType string

const (
	JobFetchSource      JobType = "fetch_source"
	JobProcessArticle   JobType = "process_article"
	JobEmbedCluster     JobType = "embed_cluster"
	JobSearchIndex      JobType = "search_index"
	JobSummarizeCluster JobType = "summarize_cluster"
)

// Job is one unit of work enqueued onto a Queue. Deadline is the absolute
// time after which the job must no longer be started; a dequeuing worker
// drops an expired job rather than run it, matching the enqueue-TTL
// cancellation model (ingest jobs TTL 10m, trend jobs TTL 4m).
type Job struct {
	ID       string          `json:"id"`
	Type     JobType         `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Deadline time.Time       `json:"deadline"`
}

// NewJob marshals payload and builds a Job with a deadline ttl from now.
func NewJob(id string, jobType JobType, payload interface{}, ttl time.Duration) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{ID: id, Type: jobType, Payload: data, Deadline: time.Now().Add(ttl)}, nil
}

// Expired reports whether now is past the job's deadline.
func (j Job) Expired(now time.Time) bool {
	return now.After(j.Deadline)
}

// Decode unmarshals the job's payload into v.
func (j Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// FetchSourcePayload carries a JobFetchSource job: fetch the feed for one source.
type FetchSourcePayload struct {
	SourceID int64 `json:"source_id"`
}

// ProcessArticlePayload carries a JobProcessArticle job: extract and store one article.
type ProcessArticlePayload struct {
	URL      string `json:"url"`
	SourceID int64  `json:"source_id"`
}

// EmbedClusterPayload carries a JobEmbedCluster job: embed and assign one article.
type EmbedClusterPayload struct {
	ArticleID int64 `json:"article_id"`
}

// SearchIndexPayload carries a JobSearchIndex job: index one article in the
// full-text search sink. No consumer for this job type ships in this
// module; full-text search indexing is a separate sink, out of scope here.
type SearchIndexPayload struct {
	ArticleID int64 `json:"article_id"`
}

// SummarizeClusterPayload carries a JobSummarizeCluster job: summarise one cluster.
type SummarizeClusterPayload struct {
	ClusterID int64 `json:"cluster_id"`
}
