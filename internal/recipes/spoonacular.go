// Package recipes suggests recipes that use up expiring items.
package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/shramba/internal/model"
)

// ErrNoAPIKey is returned when the client has no Spoonacular key.
var ErrNoAPIKey = errors.New("spoonacular api key not set")

const (
	defaultBaseURL = "https://api.spoonacular.com"

	// searchResults is how many candidates findByIngredients returns.
	searchResults = 10
	// detailLookups is how many candidates get a details request.
	detailLookups = 5
	// maxOthers bounds the extra inventory names sent with a search.
	maxOthers = 4
	// Limit is the number of recipes returned by Find.
	Limit = 3
)

// Finder suggests recipes for an item given other inventory item names.
type Finder interface {
	Find(ctx context.Context, name string, others []string) ([]model.Recipe, error)
}

// Spoonacular is a client for the Spoonacular food API.
type Spoonacular struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// Configured reports whether an API key is set.
func (s *Spoonacular) Configured() bool {
	return s != nil && s.APIKey != ""
}

type searchResult struct {
	ID                  int    `json:"id"`
	Title               string `json:"title"`
	Image               string `json:"image"`
	UsedIngredientCount int    `json:"usedIngredientCount"`
}

type recipeInfo struct {
	ID                  int    `json:"id"`
	Title               string `json:"title"`
	Image               string `json:"image"`
	ReadyInMinutes      int    `json:"readyInMinutes"`
	Servings            int    `json:"servings"`
	SourceURL           string `json:"sourceUrl"`
	ExtendedIngredients []struct {
		Name string `json:"name"`
	} `json:"extendedIngredients"`
}

// Find searches for recipes using name plus up to four other inventory
// items, fetches details for the best candidates and returns the three that
// use the most of the searched ingredients.
func (s *Spoonacular) Find(ctx context.Context, name string, others []string) ([]model.Recipe, error) {
	if !s.Configured() {
		return nil, ErrNoAPIKey
	}

	if len(others) > maxOthers {
		others = others[:maxOthers]
	}
	ingredients := append([]string{name}, others...)

	q := url.Values{}
	q.Set("ingredients", strings.Join(ingredients, ","))
	q.Set("number", strconv.Itoa(searchResults))
	q.Set("ranking", "2")
	q.Set("ignorePantry", "true")

	var found []searchResult
	if err := s.get(ctx, "/recipes/findByIngredients", q, &found); err != nil {
		return nil, fmt.Errorf("searching recipes: %w", err)
	}
	if len(found) > detailLookups {
		found = found[:detailLookups]
	}

	var (
		mu        sync.Mutex
		recipes   []model.Recipe
		detailErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, candidate := range found {
		g.Go(func() error {
			var info recipeInfo
			path := fmt.Sprintf("/recipes/%d/information", candidate.ID)
			if err := s.get(gctx, path, url.Values{}, &info); err != nil {
				// A missing detail page drops the candidate, not the search.
				mu.Lock()
				if detailErr == nil {
					detailErr = err
				}
				mu.Unlock()
				return nil
			}
			r := toRecipe(info, name, others)
			r.MatchScore = candidate.UsedIngredientCount
			mu.Lock()
			recipes = append(recipes, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if len(recipes) == 0 && detailErr != nil {
		return nil, fmt.Errorf("fetching recipe details: %w", detailErr)
	}

	sort.SliceStable(recipes, func(i, j int) bool {
		if recipes[i].MatchScore != recipes[j].MatchScore {
			return recipes[i].MatchScore > recipes[j].MatchScore
		}
		return recipes[i].ID < recipes[j].ID
	})
	if len(recipes) > Limit {
		recipes = recipes[:Limit]
	}
	return recipes, nil
}

func toRecipe(info recipeInfo, name string, others []string) model.Recipe {
	inventory := make([]string, 0, len(others))
	for _, o := range others {
		inventory = append(inventory, normalize(o))
	}

	var matched []string
	for _, ing := range info.ExtendedIngredients {
		ing := normalize(ing.Name)
		for _, inv := range inventory {
			if inv != "" && (strings.Contains(ing, inv) || strings.Contains(inv, ing)) {
				matched = append(matched, ing)
				break
			}
		}
	}
	primary := normalize(name)
	if !contains(matched, primary) {
		matched = append(matched, primary)
	}

	return model.Recipe{
		ID:                 strconv.Itoa(info.ID),
		Name:               info.Title,
		Image:              info.Image,
		SourceURL:          info.SourceURL,
		ReadyInMinutes:     info.ReadyInMinutes,
		Servings:           info.Servings,
		MatchedIngredients: matched,
	}
}

func (s *Spoonacular) get(ctx context.Context, path string, q url.Values, out any) error {
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	q.Set("apiKey", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("spoonacular returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
