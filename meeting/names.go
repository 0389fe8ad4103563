package meeting

import "math/rand"

// Room names are human-shareable verb-noun slugs like "flying-falcon".

var verbs = []string{
	"flying", "jumping", "running", "dancing", "singing",
	"cooking", "painting", "reading", "writing", "building",
	"sailing", "climbing", "glowing", "spinning", "drifting",
	"roaming", "floating", "shining", "rolling", "charging",
	"blazing", "cruising", "soaring", "surfing", "hiking",
	"fishing", "mixing", "coding", "gaming", "racing",
}

var nouns = []string{
	"falcon", "tiger", "dolphin", "phoenix", "panther",
	"rocket", "comet", "summit", "canyon", "river",
	"garden", "castle", "forest", "island", "ocean",
	"crystal", "thunder", "breeze", "sunset", "meadow",
	"glacier", "volcano", "nebula", "aurora", "horizon",
	"compass", "lantern", "anchor", "bridge", "beacon",
}

func randomRoomName() string {
	return verbs[rand.Intn(len(verbs))] + "-" + nouns[rand.Intn(len(nouns))]
}
