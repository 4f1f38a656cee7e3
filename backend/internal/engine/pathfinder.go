package engine

// FindPath computes a shortest cardinal-step path from origin to goal,
// treating blocksMovement terrain and other entities as impassable
// (origin's own occupant excepted). Returns the path excluding origin,
// including goal; an empty slice means origin == goal or goal is
// unreachable/blocked. Ties between equal-cost neighbors are broken by
// a stable lexicographic expansion order (north, east, south, west) so
// output is deterministic across runs (spec §4.6).
func FindPath(s GameState, origin, goal Position) []Position {
	if origin == goal {
		return nil
	}
	if !s.Map.InBounds(goal.X, goal.Y) || isBlocked(s, goal, origin) {
		return nil
	}
	return shortestPath(s, origin, goal, origin)
}

// FindPathToAdjacent computes a shortest path from attacker to any cell
// Chebyshev-adjacent (distance 1) to target, stopping at the first such
// cell reached (spec §4.6).
func FindPathToAdjacent(s GameState, attackerID, targetID string) []Position {
	attacker, _, ok := s.FindEntity(attackerID)
	if !ok {
		return nil
	}
	target, _, ok := s.FindEntity(targetID)
	if !ok {
		return nil
	}
	return bfs(s, attacker.Position, func(p Position) bool {
		return chebyshev(p, target.Position) == 1
	}, attacker.Position)
}

// occupiedBy returns the id of the entity occupying p, if any.
func occupiedBy(s GameState, p Position) (string, bool) {
	for _, e := range s.Entities.All() {
		if e.Position == p {
			return e.ID, true
		}
	}
	return "", false
}

func isBlocked(s GameState, p Position, ignoreOriginID Position) bool {
	if !s.Map.InBounds(p.X, p.Y) {
		return true
	}
	if t, ok := s.Map.TerrainAt(p.X, p.Y); ok && t.BlocksMovement {
		return true
	}
	if _, ok := occupiedBy(s, p); ok && p != ignoreOriginID {
		return true
	}
	return false
}

// cardinalOffsets lists the four cardinal steps in a fixed order (north,
// east, south, west) used to break ties deterministically.
var cardinalOffsets = []Position{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

func neighbors(p Position) []Position {
	out := make([]Position, 0, 4)
	for _, off := range cardinalOffsets {
		out = append(out, Position{X: p.X + off.X, Y: p.Y + off.Y})
	}
	return out
}

func shortestPath(s GameState, origin, goal, ignoreOrigin Position) []Position {
	return bfs(s, origin, func(p Position) bool { return p == goal }, ignoreOrigin)
}

// bfs performs a breadth-first search from origin, stopping at the first
// cell satisfying done. Cardinal-step BFS gives shortest path in an
// unweighted grid without needing A*'s heuristic; neighbor expansion
// order is fixed, so equal-length paths resolve identically every time.
func bfs(s GameState, origin Position, done func(Position) bool, ignoreOrigin Position) []Position {
	type queueEntry struct {
		pos Position
	}

	cameFrom := make(map[Position]Position)
	visited := map[Position]bool{origin: true}
	queue := []queueEntry{{pos: origin}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if done(current.pos) && current.pos != origin {
			return reconstructPath(cameFrom, origin, current.pos)
		}

		for _, n := range neighbors(current.pos) {
			if visited[n] {
				continue
			}
			if isBlocked(s, n, ignoreOrigin) {
				continue
			}
			visited[n] = true
			cameFrom[n] = current.pos
			queue = append(queue, queueEntry{pos: n})
		}
	}

	return nil
}

func reconstructPath(cameFrom map[Position]Position, origin, goal Position) []Position {
	reversed := []Position{goal}
	cur := goal
	for cur != origin {
		prev, ok := cameFrom[cur]
		if !ok {
			return nil
		}
		reversed = append(reversed, prev)
		cur = prev
	}

	out := make([]Position, 0, len(reversed)-1)
	for i := len(reversed) - 2; i >= 0; i-- {
		out = append(out, reversed[i])
	}
	return out
}
