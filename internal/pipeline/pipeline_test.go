package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePipeline() *Pipeline {
	return &Pipeline{
		PipelineKey:  "deep-argument-audit",
		PipelineName: "Deep Argument Audit",
		Description:  "Runs argument extraction, then power mapping, then a synthesis pass.",
		BlendMode:    BlendSequential,
		Category:     "argument",
		Status:       StatusActive,
		Stages: []Stage{
			{StageOrder: 0, StageName: "arguments", EngineKey: "argument-structure", PassContext: true},
			{StageOrder: 1, StageName: "power", EngineKey: "power-mapping", PassContext: true},
			{
				StageOrder:        2,
				StageName:         "synthesis",
				BlendMode:         BlendMerge,
				SubPassEngineKeys: []string{"timeline", "entity-map"},
				PassContext:       true,
			},
		},
	}
}

func TestPipelineValidate(t *testing.T) {
	t.Run("sample is valid", func(t *testing.T) {
		assert.NoError(t, samplePipeline().Validate())
	})

	t.Run("required fields", func(t *testing.T) {
		for _, strip := range []func(*Pipeline){
			func(p *Pipeline) { p.PipelineKey = "" },
			func(p *Pipeline) { p.PipelineName = "" },
			func(p *Pipeline) { p.Description = "" },
		} {
			p := samplePipeline()
			strip(p)
			assert.Error(t, p.Validate())
		}
	})

	t.Run("unknown blend mode", func(t *testing.T) {
		p := samplePipeline()
		p.BlendMode = "round_robin"
		assert.Error(t, p.Validate())
	})

	t.Run("stage targeting nothing", func(t *testing.T) {
		p := samplePipeline()
		p.Stages[1] = Stage{StageOrder: 1, StageName: "empty"}
		assert.Error(t, p.Validate())
	})

	t.Run("stage targeting engine and sub-pipeline", func(t *testing.T) {
		p := samplePipeline()
		p.Stages[1].SubPipelineKey = "other-pipeline"
		assert.Error(t, p.Validate())
	})

	t.Run("sub-pass engines require a blend mode", func(t *testing.T) {
		p := samplePipeline()
		p.Stages[2].BlendMode = ""
		assert.Error(t, p.Validate())
	})

	t.Run("duplicate stage orders", func(t *testing.T) {
		p := samplePipeline()
		p.Stages[2].StageOrder = 1
		assert.Error(t, p.Validate())
	})

	t.Run("non-contiguous stage orders", func(t *testing.T) {
		p := samplePipeline()
		p.Stages[2].StageOrder = 5
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not contiguous")
	})

	t.Run("self-referencing sub-pipeline", func(t *testing.T) {
		p := samplePipeline()
		p.Stages[1] = Stage{StageOrder: 1, StageName: "recurse", SubPipelineKey: "deep-argument-audit"}
		assert.Error(t, p.Validate())
	})
}

func TestPipelineApplyDefaults(t *testing.T) {
	p := &Pipeline{PipelineKey: "bare"}
	p.ApplyDefaults()
	assert.Equal(t, BlendSequential, p.BlendMode)
	assert.Equal(t, StatusActive, p.Status)
}

func TestPipelineStageAccess(t *testing.T) {
	p := samplePipeline()

	s, ok := p.StageByOrder(1)
	require.True(t, ok)
	assert.Equal(t, "power", s.StageName)

	_, ok = p.StageByOrder(9)
	assert.False(t, ok)

	assert.False(t, p.ReferencesSubPipeline("other-pipeline"))
}

func TestPipelineAddRemoveStage(t *testing.T) {
	p := samplePipeline()

	p.AddStage(Stage{StageOrder: 3, StageName: "report", EngineKey: "timeline", PassContext: true})
	require.Len(t, p.Stages, 4)
	assert.NoError(t, p.Validate())

	t.Run("remove renumbers to stay contiguous", func(t *testing.T) {
		require.True(t, p.RemoveStage(1))
		require.Len(t, p.Stages, 3)
		assert.NoError(t, p.Validate())
		names := []string{p.Stages[0].StageName, p.Stages[1].StageName, p.Stages[2].StageName}
		assert.Equal(t, []string{"arguments", "synthesis", "report"}, names)
		for i, s := range p.Stages {
			assert.Equal(t, i, s.StageOrder)
		}
	})

	t.Run("remove unknown order", func(t *testing.T) {
		assert.False(t, p.RemoveStage(42))
	})
}

func TestPipelineReorder(t *testing.T) {
	p := samplePipeline()

	require.NoError(t, p.Reorder([]int{2, 0, 1}))
	names := []string{p.Stages[0].StageName, p.Stages[1].StageName, p.Stages[2].StageName}
	assert.Equal(t, []string{"synthesis", "arguments", "power"}, names)
	assert.NoError(t, p.Validate(), "reorder keeps orders contiguous")

	t.Run("must mention every stage", func(t *testing.T) {
		p := samplePipeline()
		assert.Error(t, p.Reorder([]int{0, 1}))
		assert.Error(t, p.Reorder([]int{0, 1, 1}))
		assert.Error(t, p.Reorder([]int{0, 1, 7}))
	})
}

func TestPipelineSummarize(t *testing.T) {
	s := samplePipeline().Summarize()
	assert.Equal(t, "deep-argument-audit", s.PipelineKey)
	assert.Equal(t, 3, s.StageCount)
	assert.Equal(t, BlendSequential, s.BlendMode)

	t.Run("multibyte descriptions truncate on rune boundaries", func(t *testing.T) {
		p := samplePipeline()
		p.Description = strings.Repeat("ß", 220)
		s := p.Summarize()
		assert.True(t, utf8.ValidString(s.Description))
		assert.Equal(t, strings.Repeat("ß", 200)+"...", s.Description)
	})
}

func TestPipelineClone(t *testing.T) {
	p := samplePipeline()
	p.Stages[2].Config = map[string]interface{}{"max_items": 40}

	clone := p.Clone()
	clone.Stages[0].StageName = "tampered"
	clone.Stages[2].SubPassEngineKeys[0] = "tampered"
	clone.Stages[2].Config["max_items"] = 1

	assert.Equal(t, "arguments", p.Stages[0].StageName)
	assert.Equal(t, "timeline", p.Stages[2].SubPassEngineKeys[0])
	assert.Equal(t, 40, p.Stages[2].Config["max_items"])
}
