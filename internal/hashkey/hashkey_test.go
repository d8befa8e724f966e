package hashkey

import "testing"

func TestFNV1aEmptyNameIsNoKey(t *testing.T) {
	if got := (FNV1a{}).Hash(""); got != NoKey {
		t.Fatalf("empty name should hash to NoKey, got %d", got)
	}
}

func TestFNV1aIsDeterministic(t *testing.T) {
	a := (FNV1a{}).Hash("player.health")
	b := (FNV1a{}).Hash("player.health")
	if a != b {
		t.Fatal("hashing the same name twice should produce the same key")
	}
	if a == (FNV1a{}).Hash("player.mana") {
		t.Fatal("distinct names should not collide in this test")
	}
}

func TestRandomNeverReturnsNoKey(t *testing.T) {
	for i := 0; i < 1000; i++ {
		if Random() == NoKey {
			t.Fatal("Random must never return NoKey")
		}
	}
}
