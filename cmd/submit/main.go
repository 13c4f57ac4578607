package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"outreach-engine/internal/delivery/http/dto"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/infrastructure/apiclient"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "base URL of a running server")
	file := flag.String("file", "", "JSON file with one opportunity or an array of them")
	profileFile := flag.String("profile", "", "optional JSON file with the applicant profile")
	priority := flag.String("priority", "", "low, medium or high; derived from urgency when empty")
	process := flag.Bool("process", false, "dispatch the next queued opportunity after submitting")
	flag.Parse()

	if *file == "" {
		log.Fatalf("provide -file")
	}
	opps, err := readOpportunities(*file)
	if err != nil {
		log.Fatalf("read opportunities: %v", err)
	}
	var profile *opportunity.Profile
	if *profileFile != "" {
		p := opportunity.Profile{}
		if err := readJSON(*profileFile, &p); err != nil {
			log.Fatalf("read profile: %v", err)
		}
		profile = &p
	}

	client, err := apiclient.New(*server, log.Default())
	if err != nil {
		log.Fatalf("invalid server: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	failed := 0
	for _, o := range opps {
		res, err := client.SubmitOpportunity(ctx, dto.SubmitOpportunityRequest{Opportunity: o, Profile: profile, Priority: *priority})
		if err != nil {
			failed++
			log.Printf("submit opportunity_id=%s status=error err=%v", o.ID, err)
			continue
		}
		if !res.Accepted {
			log.Printf("submit opportunity_id=%s status=rejected score=%d code=%s reason=%q", o.ID, res.Match.Score, res.Code, res.Reason)
			continue
		}
		log.Printf("submit opportunity_id=%s status=queued score=%d priority=%s", o.ID, res.Match.Score, res.Priority)
	}

	if *process {
		res, err := client.ProcessNext(ctx)
		if err != nil {
			log.Fatalf("process: %v", err)
		}
		log.Printf("process processed=%t pipeline_id=%s status=%s", res.Processed, res.PipelineID, res.Status)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func readOpportunities(path string) ([]opportunity.Opportunity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var many []opportunity.Opportunity
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one opportunity.Opportunity
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []opportunity.Opportunity{one}, nil
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
