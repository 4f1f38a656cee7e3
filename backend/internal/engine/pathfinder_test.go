package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPathOriginEqualsGoal(t *testing.T) {
	s := baseState()
	assert.Nil(t, FindPath(s, Position{X: 2, Y: 2}, Position{X: 2, Y: 2}))
}

func TestFindPathStraightLine(t *testing.T) {
	s := baseState()
	path := FindPath(s, Position{X: 0, Y: 0}, Position{X: 3, Y: 0})
	require.Len(t, path, 3)
	assert.Equal(t, Position{X: 3, Y: 0}, path[len(path)-1])
	// every step cardinally adjacent to the previous
	prev := Position{X: 0, Y: 0}
	for _, p := range path {
		assert.Equal(t, 1, chebyshev(prev, p))
		assert.True(t, p.X == prev.X || p.Y == prev.Y)
		prev = p
	}
}

func TestFindPathAroundBlockedTerrain(t *testing.T) {
	s := baseState()
	s.Map = newMap(5, 5)
	s.Map.Terrain = []TerrainCell{
		{X: 1, Y: 0, Type: "wall", BlocksMovement: true},
		{X: 1, Y: 1, Type: "wall", BlocksMovement: true},
		{X: 1, Y: 2, Type: "wall", BlocksMovement: true},
	}
	path := FindPath(s, Position{X: 0, Y: 1}, Position{X: 2, Y: 1})
	require.NotNil(t, path)
	for _, p := range path {
		assert.False(t, p.X == 1 && p.Y <= 2, "path must not cross the blocked wall")
	}
}

func TestFindPathUnreachableGoalReturnsNil(t *testing.T) {
	s := baseState()
	s.Map = newMap(3, 3)
	s.Map.Terrain = []TerrainCell{
		{X: 1, Y: 0, Type: "wall", BlocksMovement: true},
		{X: 1, Y: 1, Type: "wall", BlocksMovement: true},
		{X: 1, Y: 2, Type: "wall", BlocksMovement: true},
	}
	path := FindPath(s, Position{X: 0, Y: 1}, Position{X: 2, Y: 1})
	assert.Nil(t, path)
}

func TestFindPathGoalOccupiedByOtherEntityIsBlocked(t *testing.T) {
	s := baseState()
	path := FindPath(s, Position{X: 0, Y: 0}, s.Entities.Players[0].Position)
	assert.Nil(t, path)
}

func TestFindPathToAdjacentStopsNextToTarget(t *testing.T) {
	s := baseState()
	ent, bucket, _ := s.FindEntity("pc-a")
	ent.Position = Position{X: 0, Y: 0}
	s = s.WithEntity(bucket, "pc-a", ent)

	npc, npcBucket, _ := s.FindEntity("npc-1")
	npc.Position = Position{X: 5, Y: 5}
	s = s.WithEntity(npcBucket, "npc-1", npc)

	path := FindPathToAdjacent(s, "pc-a", "npc-1")
	require.NotEmpty(t, path)
	last := path[len(path)-1]
	assert.Equal(t, 1, chebyshev(last, npc.Position))
}

func TestFindPathToAdjacentUnknownEntities(t *testing.T) {
	s := baseState()
	assert.Nil(t, FindPathToAdjacent(s, "ghost", "npc-1"))
	assert.Nil(t, FindPathToAdjacent(s, "pc-a", "ghost"))
}

func TestOccupiedBy(t *testing.T) {
	s := baseState()
	id, ok := occupiedBy(s, s.Entities.NPCs[0].Position)
	require.True(t, ok)
	assert.Equal(t, "npc-1", id)

	_, ok = occupiedBy(s, Position{X: 9, Y: 9})
	assert.False(t, ok)
}
