package main

import (
	"bytes"
	"encoding/base64"
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

// Smoke test against a running server. In demo mode (no API key) the map
// analysis answers with the bundled dataset, so every step below works
// without credentials.
func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	// 1. Health
	fmt.Println("1. Checking Health...")
	if _, ok := sendRequest("GET", "/healthz", nil); !ok {
		fmt.Println("FAILED: Health check")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health check")

	// 2. Map analysis via JSON base64 upload
	fmt.Println("2. Analyzing Map...")
	payload := map[string]interface{}{
		"files": []map[string]string{
			{
				"name":     "scan.png",
				"mimeType": "image/png",
				"data":     base64.StdEncoding.EncodeToString([]byte("smoke test image")),
			},
		},
	}

	body, ok := sendRequest("POST", "/analyze/map", payload)
	if !ok {
		fmt.Println("FAILED: Map analysis")
		os.Exit(1)
	}
	var analysis struct {
		ID         string `json:"id"`
		Demo       bool   `json:"demo"`
		Partitions []struct {
			Remarks string `json:"remarks"`
		} `json:"partitions"`
	}
	if err := json.Unmarshal(body, &analysis); err != nil || analysis.ID == "" || len(analysis.Partitions) == 0 {
		fmt.Println("FAILED: Map analysis response shape")
		os.Exit(1)
	}
	fmt.Printf("PASSED: Map analysis (id=%s demo=%v)\n", analysis.ID, analysis.Demo)

	// 3. Overlap resolution
	fmt.Println("3. Resolving Overlaps...")
	overlapPayload := map[string]interface{}{
		"partitions": []map[string]interface{}{
			{"villageName": "Shivapur", "partitionId": "P1", "surveyNumbers": []string{"12/1", "101"}},
			{"villageName": "Shivapur", "partitionId": "P2", "surveyNumbers": []string{"16", "17"}},
			{"villageName": "Shivapur", "partitionId": "P3", "surveyNumbers": []string{"12/3", "101"}},
			{"villageName": "Shivapur", "partitionId": "P4", "surveyNumbers": []string{"20", "12/3"}},
		},
	}

	body, ok = sendRequest("POST", "/overlaps", overlapPayload)
	if !ok {
		fmt.Println("FAILED: Overlap resolution")
		os.Exit(1)
	}
	var resolved struct {
		Partitions []struct {
			Remarks string `json:"remarks"`
		} `json:"partitions"`
	}
	if err := json.Unmarshal(body, &resolved); err != nil || len(resolved.Partitions) != 4 {
		fmt.Println("FAILED: Overlap response shape")
		os.Exit(1)
	}
	if resolved.Partitions[0].Remarks != "101 → P1 / P3" ||
		resolved.Partitions[1].Remarks != "No overlaps detected" {
		fmt.Printf("FAILED: Unexpected remarks: %q / %q\n",
			resolved.Partitions[0].Remarks, resolved.Partitions[1].Remarks)
		os.Exit(1)
	}
	fmt.Println("PASSED: Overlap resolution")

	// 4. History
	fmt.Println("4. Listing Analyses...")
	if _, ok := sendRequest("GET", "/analyses", nil); !ok {
		fmt.Println("FAILED: List analyses")
		os.Exit(1)
	}
	fmt.Println("PASSED: List analyses")

	// 5. CSV export of the stored analysis
	fmt.Println("5. Exporting CSV...")
	body, ok = sendRequest("GET", "/analyses/"+analysis.ID+"/export?format=csv", nil)
	if !ok {
		fmt.Println("FAILED: CSV export")
		os.Exit(1)
	}
	if !bytes.HasPrefix(body, []byte("Village Name,Partition Number,Survey Numbers,Remarks")) {
		fmt.Println("FAILED: CSV header mismatch")
		os.Exit(1)
	}
	fmt.Println("PASSED: CSV export")
}

func sendRequest(method, endpoint string, payload interface{}) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}

	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}
