// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command seed populates a running TaskPiper server with randomly
// generated users and tasks, for demos and manual testing.
//
// # Usage
//
//	go run ./cmd/seed --url http://localhost:3000 --users 20 --tasks 100
//
// About half of the generated tasks are assigned to a random seeded
// user; the rest stay unassigned.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagURL   string
	flagUsers int
	flagTasks int
)

var firstNames = []string{
	"james", "john", "robert", "michael", "william",
	"david", "richard", "charles", "joseph", "thomas",
}

var lastNames = []string{
	"smith", "johnson", "williams", "jones", "brown",
	"davis", "miller", "wilson", "moore", "taylor",
}

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate a TaskPiper server with random users and tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return seed(flagURL, flagUsers, flagTasks)
	},
}

func main() {
	rootCmd.Flags().StringVar(&flagURL, "url", "http://localhost:3000", "base URL of the server")
	rootCmd.Flags().IntVar(&flagUsers, "users", 20, "number of users to create")
	rootCmd.Flags().IntVar(&flagTasks, "tasks", 100, "number of tasks to create")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func seed(baseURL string, userCount, taskCount int) error {
	client := &http.Client{Timeout: 10 * time.Second}

	userIDs := make([]string, 0, userCount)
	for i := 0; i < userCount; i++ {
		first := firstNames[rand.Intn(len(firstNames))]
		last := lastNames[rand.Intn(len(lastNames))]
		body := map[string]any{
			"name":  first + " " + last,
			"email": fmt.Sprintf("%s.%s.%d@example.com", first, last, i),
		}
		id, err := post(client, baseURL+"/api/users", body)
		if err != nil {
			return fmt.Errorf("create user %d: %w", i, err)
		}
		userIDs = append(userIDs, id)
	}
	fmt.Printf("created %d users\n", len(userIDs))

	assigned := 0
	for i := 0; i < taskCount; i++ {
		deadline := time.Now().AddDate(0, 0, rand.Intn(365)+1).Format("2006-01-02")
		body := map[string]any{
			"name":        fmt.Sprintf("Task %d", i),
			"description": "seeded task",
			"deadline":    deadline,
			"completed":   rand.Intn(4) == 0,
		}
		if len(userIDs) > 0 && rand.Intn(2) == 0 {
			body["assignedUser"] = userIDs[rand.Intn(len(userIDs))]
			assigned++
		}
		if _, err := post(client, baseURL+"/api/tasks", body); err != nil {
			return fmt.Errorf("create task %d: %w", i, err)
		}
	}
	fmt.Printf("created %d tasks (%d assigned)\n", taskCount, assigned)
	return nil
}

// post sends one create request and returns the created document's id.
func post(client *http.Client, url string, body map[string]any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%s: %s", resp.Status, env.Message)
	}

	var doc struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(env.Data, &doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}
