package services

import (
	"fmt"
	"sort"
	"strings"

	"leadmarket/models"
	"leadmarket/utils"
)

// topPropertiesShown caps the "most matched" section of the report.
const topPropertiesShown = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises the records of one sync run over scanned properties.
func (s *InsightService) Generate(scanned int, records []models.MatchRecord) *models.SyncReport {
	report := &models.SyncReport{
		PropertiesScanned: scanned,
		ByBudget:          make(map[models.BudgetMatchType]int),
		ByStrategy:        make(map[models.LocationStrategy]int),
		ByCity:            make(map[string]int),
		ByOutcome:         make(map[models.SyncOutcome]int),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalMatches = len(records)

	buyers := make(map[string]struct{})
	perProperty := make(map[string]*models.PropertyMatchCount)

	for _, r := range records {
		buyers[r.BuyerID] = struct{}{}
		report.ByBudget[r.BudgetMatchType]++
		report.ByStrategy[r.LocationStrategy]++
		report.ByOutcome[r.Outcome]++
		if r.City != "" {
			report.ByCity[r.City+", "+r.State]++
		}

		pc, ok := perProperty[r.PropertyID]
		if !ok {
			pc = &models.PropertyMatchCount{PropertyID: r.PropertyID, Address: r.Address, City: r.City, State: r.State}
			perProperty[r.PropertyID] = pc
		}
		pc.Matches++
	}
	report.UniqueBuyers = len(buyers)

	top := make([]models.PropertyMatchCount, 0, len(perProperty))
	for _, pc := range perProperty {
		top = append(top, *pc)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Matches != top[j].Matches {
			return top[i].Matches > top[j].Matches
		}
		return top[i].PropertyID < top[j].PropertyID
	})
	if len(top) > topPropertiesShown {
		top = top[:topPropertiesShown]
	}
	report.TopProperties = top

	s.logger.Debug("[insights] %d matches across %d properties", report.TotalMatches, len(perProperty))
	return report
}

func (s *InsightService) Print(r *models.SyncReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 BUYER MATCH SYNC\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Properties scanned : \033[1m%d\033[0m\n", r.PropertiesScanned)
	fmt.Printf("  Matched pairs      : \033[1m%d\033[0m\n", r.TotalMatches)
	fmt.Printf("  Buyers matched     : \033[1m%d\033[0m\n", r.UniqueBuyers)
	fmt.Println()

	// Budget fit
	fmt.Printf("\033[1;33m  Budget Fit\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.TotalMatches == 0 {
		fmt.Printf("  No matches this run\n")
	} else {
		for _, t := range []models.BudgetMatchType{models.BudgetBoth, models.BudgetMonthlyOnly, models.BudgetDownOnly} {
			fmt.Printf("  %-22s : \033[1;32m%d\033[0m\n", t.Label(), r.ByBudget[t])
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Location Matched By\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, l := range []models.LocationStrategy{
		models.LocNearbyCities, models.LocExactCity, models.LocRadius, models.LocBoundingBox,
	} {
		fmt.Printf("  %-22s : %d\n", l, r.ByStrategy[l])
	}
	fmt.Println()

	// Notifications
	fmt.Printf("\033[1;33m  Notifications\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, o := range []models.SyncOutcome{
		models.OutcomeNotified, models.OutcomeDuplicate, models.OutcomeSkipped,
		models.OutcomeRateLimited, models.OutcomeFailed,
	} {
		colour := "32"
		if o == models.OutcomeFailed || o == models.OutcomeRateLimited {
			colour = "31"
		}
		fmt.Printf("  %-14s : \033[1;%sm%d\033[0m\n", o, colour, r.ByOutcome[o])
	}
	fmt.Println()

	// ── TOP MATCHED PROPERTIES ───────────────────────────────────────────
	fmt.Printf("\033[1;33m  Top %d Most Matched Properties\033[0m\n", topPropertiesShown)
	fmt.Printf("  %s\n", thin)
	if len(r.TopProperties) == 0 {
		fmt.Printf("  No matched properties\n")
	} else {
		for i, p := range r.TopProperties {
			label := truncate(p.Address+", "+p.City, 38)
			fmt.Printf("  \033[1m%d.\033[0m %-40s \033[1;32m%d buyers\033[0m\n",
				i+1, label, p.Matches)
		}
	}
	fmt.Println()

	// Matches by city
	fmt.Printf("\033[1;33m  Matches by City\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ByCity) == 0 {
		fmt.Printf("  No location data\n")
	} else {
		type cityCount struct {
			city  string
			count int
		}
		var cities []cityCount
		for city, cnt := range r.ByCity {
			cities = append(cities, cityCount{city, cnt})
		}
		sort.Slice(cities, func(i, j int) bool {
			if cities[i].count != cities[j].count {
				return cities[i].count > cities[j].count
			}
			return cities[i].city < cities[j].city
		})
		for _, cc := range cities {
			bar := strings.Repeat("█", cc.count)
			fmt.Printf("  %-30s %s (%d)\n", truncate(cc.city, 28), bar, cc.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
