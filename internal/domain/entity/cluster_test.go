package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterRun_Validate(t *testing.T) {
	valid := func() ClusterRun {
		return ClusterRun{SpaceID: 1, Algo: "online-knn-v1"}
	}

	t.Run("defaults status to running", func(t *testing.T) {
		r := valid()
		assert.NoError(t, r.Validate())
		assert.Equal(t, ClusterRunStatusRunning, r.Status)
	})

	t.Run("missing space_id fails", func(t *testing.T) {
		r := valid()
		r.SpaceID = 0
		assert.Error(t, r.Validate())
	})

	t.Run("missing algo fails", func(t *testing.T) {
		r := valid()
		r.Algo = ""
		assert.Error(t, r.Validate())
	})

	t.Run("unknown status fails", func(t *testing.T) {
		r := valid()
		r.Status = ClusterRunStatus("paused")
		err := r.Validate()
		assert.Error(t, err)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
		assert.Equal(t, "status", ve.Field)
	})

	for _, st := range []ClusterRunStatus{ClusterRunStatusRunning, ClusterRunStatusComplete, ClusterRunStatusFailed} {
		t.Run("status "+string(st)+" accepted", func(t *testing.T) {
			r := valid()
			r.Status = st
			assert.NoError(t, r.Validate())
		})
	}
}

func TestArticleCluster_Struct(t *testing.T) {
	sim := 0.91
	ac := ArticleCluster{RunID: 1, ClusterID: 2, ArticleID: 3, Similarity: &sim}

	assert.Equal(t, int64(1), ac.RunID)
	assert.Equal(t, int64(2), ac.ClusterID)
	assert.Equal(t, int64(3), ac.ArticleID)
	assert.InDelta(t, 0.91, *ac.Similarity, 1e-9)
}

func TestClusterSummary_Validate(t *testing.T) {
	valid := func() ClusterSummary {
		return ClusterSummary{ClusterID: 1, RunID: 1, SummarizerEngine: "mistral-large-latest"}
	}

	t.Run("defaults lang to en", func(t *testing.T) {
		s := valid()
		assert.NoError(t, s.Validate())
		assert.Equal(t, "en", s.Lang)
	})

	t.Run("missing cluster_id fails", func(t *testing.T) {
		s := valid()
		s.ClusterID = 0
		assert.Error(t, s.Validate())
	})

	t.Run("missing run_id fails", func(t *testing.T) {
		s := valid()
		s.RunID = 0
		assert.Error(t, s.Validate())
	})

	t.Run("missing engine fails", func(t *testing.T) {
		s := valid()
		s.SummarizerEngine = ""
		assert.Error(t, s.Validate())
	})
}
