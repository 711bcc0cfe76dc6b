package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildRNGDeterministic(t *testing.T) {
	s1 := New(12345)
	s2 := New(12345)

	a := s1.ChildRNG("meter-001").Uniform(0, 1)
	b := s2.ChildRNG("meter-001").Uniform(0, 1)

	assert.Equal(t, a, b)
}

func TestChildRNGDiffersByEntity(t *testing.T) {
	s := New(12345)
	a := s.ChildRNG("meter-001").Uniform(0, 1)
	b := s.ChildRNG("meter-002").Uniform(0, 1)
	assert.NotEqual(t, a, b)
}

func TestTimestampRNGDeterministic(t *testing.T) {
	s1 := New(999)
	s2 := New(999)

	a := s1.TimestampRNG("pv-1", 1_718_150_400_000).Normal(0, 1)
	b := s2.TimestampRNG("pv-1", 1_718_150_400_000).Normal(0, 1)

	assert.Equal(t, a, b)
}

func TestTimestampRNGDiffersByTimestamp(t *testing.T) {
	s := New(999)
	a := s.TimestampRNG("pv-1", 1_718_150_400_000).Normal(0, 1)
	b := s.TimestampRNG("pv-1", 1_718_150_460_000).Normal(0, 1)
	assert.NotEqual(t, a, b)
}

func TestBernoulliBounds(t *testing.T) {
	s := New(1).ChildRNG("x")
	assert.False(t, s.Bernoulli(0))
	assert.True(t, s.Bernoulli(1))
}

func TestUniformDegenerateRange(t *testing.T) {
	s := New(1).ChildRNG("x")
	assert.Equal(t, 5.0, s.Uniform(5, 5))
}

func TestClampNormalRespectsBounds(t *testing.T) {
	s := New(1).ChildRNG("x")
	for i := 0; i < 1000; i++ {
		v := s.ClampNormal(0, 10, -1, 1)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
