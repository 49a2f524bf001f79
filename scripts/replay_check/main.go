// replay_check verifies generation determinism against a running instance:
// it requests the same candidate set twice with a fixed seed and compares
// group memberships. Intended for smoke checks after deploys.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type generateRequest struct {
	GroupCount int    `json:"groupCount,omitempty"`
	Seed       int64  `json:"seed"`
	Algorithm  string `json:"algorithm,omitempty"`
	Count      int    `json:"count,omitempty"`
}

type candidateSet struct {
	Candidates []struct {
		Variant string `json:"variant"`
		Seed    int64  `json:"seed"`
		Groups  []struct {
			Key     string   `json:"key"`
			Members []string `json:"members"`
		} `json:"groups"`
	} `json:"candidates"`
}

type envelope struct {
	Data  candidateSet    `json:"data"`
	Error json.RawMessage `json:"error"`
}

func main() {
	var (
		base       string
		activityID string
		seed       int64
		algorithm  string
		groupCount int
		count      int
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&activityID, "activity", "", "Activity ID to generate candidates for")
	flag.Int64Var(&seed, "seed", 42, "Seed shared by both runs")
	flag.StringVar(&algorithm, "algorithm", "", "Variant to lead the candidate catalog")
	flag.IntVar(&groupCount, "groups", 3, "Number of derived groups")
	flag.IntVar(&count, "count", 4, "Candidates per run")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if activityID == "" {
		log.Fatal("missing required -activity flag")
	}
	if seed == 0 {
		log.Fatal("seed must be non-zero; zero asks the server to pick its own")
	}

	client := &http.Client{Timeout: timeout}
	url := fmt.Sprintf("%s/api/v1/activities/%s/candidates", base, activityID)
	req := generateRequest{GroupCount: groupCount, Seed: seed, Algorithm: algorithm, Count: count}

	first, err := fetchCandidates(client, url, req)
	if err != nil {
		log.Fatalf("first run failed: %v", err)
	}
	second, err := fetchCandidates(client, url, req)
	if err != nil {
		log.Fatalf("second run failed: %v", err)
	}

	mismatches := compare(first, second)
	if len(mismatches) == 0 {
		fmt.Printf("OK: %d candidates reproduced identically for seed %d\n", len(first.Candidates), seed)
		return
	}

	fmt.Printf("FAIL: %d mismatches for seed %d\n", len(mismatches), seed)
	for _, m := range mismatches {
		fmt.Println("  " + m)
	}
	os.Exit(1)
}

func fetchCandidates(client *http.Client, url string, req generateRequest) (*candidateSet, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env.Data, nil
}

func compare(first, second *candidateSet) []string {
	var mismatches []string
	if len(first.Candidates) != len(second.Candidates) {
		return []string{fmt.Sprintf("candidate count differs: %d vs %d", len(first.Candidates), len(second.Candidates))}
	}
	for i := range first.Candidates {
		a, b := first.Candidates[i], second.Candidates[i]
		if a.Variant != b.Variant || a.Seed != b.Seed {
			mismatches = append(mismatches, fmt.Sprintf("candidate %d: variant/seed differ (%s/%d vs %s/%d)", i+1, a.Variant, a.Seed, b.Variant, b.Seed))
			continue
		}
		if len(a.Groups) != len(b.Groups) {
			mismatches = append(mismatches, fmt.Sprintf("candidate %d: group count differs", i+1))
			continue
		}
		for j := range a.Groups {
			ga, gb := a.Groups[j], b.Groups[j]
			if ga.Key != gb.Key || !equalMembers(ga.Members, gb.Members) {
				mismatches = append(mismatches, fmt.Sprintf("candidate %d group %s: membership differs", i+1, ga.Key))
			}
		}
	}
	return mismatches
}

func equalMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
