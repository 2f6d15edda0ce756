package feedback

// #region imports
import "strings"

// #endregion

// #region lexicons

// positiveMarkers signal the crowd liked the action.
var positiveMarkers = []string{
	"pog", "poggers", "lets go", "let's go", "nice", "gg",
	"love this", "love it", "great", "amazing", "lol", "lmao",
	"haha", "clip it", "best host",
}

// negativeMarkers signal the crowd turned on the action.
var negativeMarkers = []string{
	"boo", "rigged", "scam", "trash", "cringe", "boring",
	"lame", "bad call", "awful", "terrible", "mute", "yikes",
}

// hypeMarkers signal raw excitement regardless of polarity.
var hypeMarkers = []string{
	"pog", "poggers", "insane", "no way", "omg", "hype",
	"unreal", "!!!", "clip it", "lets go", "let's go",
}

// hypeEmotes are emote names that read as excitement.
var hypeEmotes = map[string]bool{
	"pogchamp": true, "pog": true, "hypers": true, "ez": true,
	"kreygasm": true, "catjam": true,
}

// negativeEmotes are emote names that read as disapproval.
var negativeEmotes = map[string]bool{
	"residentsleeper": true, "notlikethis": true, "lul": false,
	"babyrage": true, "wutface": true,
}

// #endregion lexicons

// #region classify

// eventContribution is one event's classified weight.
type eventContribution struct {
	positive float64
	negative float64
	hype     float64
}

// classifyEvent maps a single chat event to bounded contributions. The
// heuristics are deliberately shallow — enthusiasm markers raise hype
// and positive, negative markers raise negative. Clips always read as
// hype: nobody clips a boring moment.
func classifyEvent(ev ChatEvent) eventContribution {
	lower := strings.ToLower(strings.TrimSpace(ev.Content))
	var c eventContribution

	switch ev.Type {
	case EventClip:
		c.hype = 1.0
		c.positive = 0.5
		return c
	case EventEmote:
		if hypeEmotes[lower] {
			c.hype = 0.8
			c.positive = 0.6
		} else if negativeEmotes[lower] {
			c.negative = 0.7
		} else {
			c.positive = 0.2 // any emote is mild engagement
		}
		return c
	}

	for _, m := range positiveMarkers {
		if strings.Contains(lower, m) {
			c.positive += 0.4
		}
	}
	for _, m := range negativeMarkers {
		if strings.Contains(lower, m) {
			c.negative += 0.4
		}
	}
	for _, m := range hypeMarkers {
		if strings.Contains(lower, m) {
			c.hype += 0.3
		}
	}
	// Shouting reads as excitement
	if len(lower) >= 6 && strings.ToUpper(ev.Content) == ev.Content && strings.ToLower(ev.Content) != ev.Content {
		c.hype += 0.3
	}

	c.positive = clamp01(c.positive)
	c.negative = clamp01(c.negative)
	c.hype = clamp01(c.hype)
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

// #endregion classify
