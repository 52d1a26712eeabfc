package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	// 1. Ingest the Lehman cascade
	fmt.Println("1. Ingesting Events...")
	events := []map[string]interface{}{
		{
			"event_id":   "evt_lehman_bankruptcy",
			"timestamp":  "2008-09-15T00:00:00Z",
			"category":   "bankruptcy_filing",
			"entity_ids": []string{"ent_lehman"},
			"summary":    "Lehman Brothers files for Chapter 11 bankruptcy protection.",
		},
		{
			"event_id":   "evt_aig_bailout",
			"timestamp":  "2008-09-16T00:00:00Z",
			"category":   "bailout_announcement",
			"entity_ids": []string{"ent_aig", "ent_fed"},
			"summary":    "Federal Reserve announces 85 billion dollar bailout of AIG.",
		},
		{
			"event_id":   "evt_market_crash",
			"timestamp":  "2008-09-29T00:00:00Z",
			"category":   "stock_crash",
			"entity_ids": []string{"ent_dow"},
			"summary":    "Dow Jones drops 777 points after bailout bill fails in the House.",
		},
	}

	if !sendRequest("POST", "/events", map[string]interface{}{"events": events}) {
		fmt.Println("FAILED: Ingest events")
		os.Exit(1)
	}

	// 2. Rebuild the evolution graph
	fmt.Println("2. Rebuilding Links...")
	if !sendRequest("POST", "/rebuild", nil) {
		fmt.Println("FAILED: Rebuild")
		os.Exit(1)
	}

	// 3. Query links out of the bankruptcy filing
	fmt.Println("3. Querying Links...")
	if !sendRequest("GET", "/links/from/evt_lehman_bankruptcy", nil) {
		fmt.Println("FAILED: Query links")
		os.Exit(1)
	}

	// 4. Clusters over the accepted links
	fmt.Println("4. Querying Clusters...")
	if !sendRequest("GET", "/clusters", nil) {
		fmt.Println("FAILED: Query clusters")
		os.Exit(1)
	}

	fmt.Println("Integration Test PASSED")
}

func sendRequest(method, path string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			fmt.Printf("Failed to marshal payload: %v\n", err)
			return false
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		fmt.Printf("Failed to create request: %v\n", err)
		return false
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	fmt.Printf("  %s %s -> %d: %s\n", method, path, resp.StatusCode, string(data))
	return resp.StatusCode == http.StatusOK
}
