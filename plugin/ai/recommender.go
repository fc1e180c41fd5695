package ai

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hrygo/gamelogd/store"
)

// ratingBuckets lists every half-star rating from best to worst with the
// wording used to describe it to the model.
var ratingBuckets = []struct {
	halfStars int
	label     string
}{
	{10, "5-star games (absolutely loved)"},
	{9, "4.5-star games (almost loved)"},
	{8, "4-star games (really liked)"},
	{7, "3.5-star games (liked quite a bit)"},
	{6, "3-star games (enjoyed/neutral)"},
	{5, "2.5-star games (mixed feelings)"},
	{4, "2-star games (didn't love)"},
	{3, "1.5-star games (didn't really like)"},
	{2, "1-star games (disliked)"},
	{1, "0.5-star games (really disliked)"},
}

const recommenderSystemPrompt = `You are a video game recommendation engine.
Always answer with a JSON object of the form {"recommendations": [{"id": string, "title": string, "explanation": string, "matchScore": number}]}.`

const recommenderPromptTemplate = `Recommend %d video games that best match this player's taste.

The player's rated games:
%s

How to read the half-star ratings:
- 4.5 to 5 stars: the player loves these games
- 3.5 to 4 stars: the player really likes these games
- 2.5 to 3 stars: the player enjoys these games but is neutral about them
- 1.5 to 2 stars: the player does not love these games
- 0.5 to 1 star: the player dislikes these games

Only recommend games the player would likely rate 4 stars or more, and never a game they already rated.
Weigh genres, themes, gameplay mechanics, art style and difficulty. Small rating differences matter: 4.5 stars is a stronger signal than 4.
For each game give a short explanation tied to the ratings above and a matchScore from 0 to 100.
Use a unique string id per game.`

// BuildRecommendationPrompt groups the rated titles by rating, best first.
func BuildRecommendationPrompt(ratedGames []store.RatedGame, count int) string {
	titles := make(map[int][]string)
	for _, rg := range ratedGames {
		halfStars := int(math.Round(rg.Rating * 2))
		titles[halfStars] = append(titles[halfStars], rg.Title)
	}

	lines := make([]string, 0, len(ratingBuckets))
	for _, bucket := range ratingBuckets {
		if len(titles[bucket.halfStars]) == 0 {
			continue
		}
		lines = append(lines, bucket.label+": "+strings.Join(titles[bucket.halfStars], ", "))
	}

	return fmt.Sprintf(recommenderPromptTemplate, count, strings.Join(lines, "\n"))
}

// Recommender generates game recommendations with an LLM.
type Recommender struct {
	llm LLMService
}

// NewRecommender creates a Recommender backed by llm.
func NewRecommender(llm LLMService) *Recommender {
	return &Recommender{llm: llm}
}

// Generate asks the model for count recommendations based on ratedGames.
func (r *Recommender) Generate(ctx context.Context, ratedGames []store.RatedGame, count int) ([]store.GameRecommendation, error) {
	content, err := r.llm.ChatJSON(ctx, []Message{
		SystemPrompt(recommenderSystemPrompt),
		UserMessage(BuildRecommendationPrompt(ratedGames, count)),
	})
	if err != nil {
		return nil, err
	}

	recs, err := ParseRecommendations(content)
	if err != nil {
		return nil, err
	}
	if len(recs) > count {
		recs = recs[:count]
	}
	return recs, nil
}

var codeFence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

type rawRecommendation struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Explanation string          `json:"explanation"`
	MatchScore  *float64        `json:"matchScore"`
	CoverImage  string          `json:"coverImage"`
}

// ParseRecommendations accepts either a bare JSON array or an object with a
// "recommendations" array, optionally wrapped in a markdown code block.
func ParseRecommendations(content string) ([]store.GameRecommendation, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if matches := codeFence.FindStringSubmatch(content); len(matches) > 1 {
			content = matches[1]
		}
	}

	var raw []rawRecommendation
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
		}
	} else {
		var wrapped struct {
			Recommendations []rawRecommendation `json:"recommendations"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
		}
		raw = wrapped.Recommendations
	}

	recs := make([]store.GameRecommendation, 0, len(raw))
	for i, item := range raw {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		id := rawID(item.ID)
		if id == "" {
			id = "rec-" + strconv.Itoa(i+1)
		}
		rec := store.GameRecommendation{
			Game: store.Game{
				ID:         id,
				Title:      title,
				CoverImage: item.CoverImage,
			},
			Explanation: strings.TrimSpace(item.Explanation),
		}
		if item.MatchScore != nil {
			score := math.Max(0, math.Min(100, *item.MatchScore))
			rec.MatchScore = &score
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// rawID accepts ids sent as strings or numbers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
