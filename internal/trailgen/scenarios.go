package trailgen

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var routineActions = []string{
	"ListUsers", "GetUser", "ListRoles", "GetRole",
	"ListAccessKeys", "ListAttachedUserPolicies", "GetAccountSummary",
	"ListGroups", "GetPolicy", "ListPolicies",
}

var adminActions = []string{
	"AttachUserPolicy", "CreateAccessKey", "PutUserPolicy",
	"CreateUser", "AttachRolePolicy",
}

func pickAction(actions []string) string {
	return actions[gofakeit.Number(0, len(actions)-1)]
}

// normal: business-hours reads from one IP in one region, MFA on.
func (g *generator) normal(arn string, events int) []map[string]interface{} {
	ip := gofakeit.IPv4Address()
	region := g.regions[0]
	recs := make([]map[string]interface{}, 0, events)
	for i := 0; i < events; i++ {
		ts := g.base.Add(time.Duration(i*7) * time.Minute)
		recs = append(recs, g.record(ts, arn, pickAction(routineActions), ip, region, "", true))
	}
	return recs
}

// offHoursAdmin: privilege changes at 02:00 without MFA.
func (g *generator) offHoursAdmin(arn string, events int) []map[string]interface{} {
	ip := gofakeit.IPv4Address()
	region := g.regions[0]
	night := time.Date(g.base.Year(), g.base.Month(), g.base.Day(), 2, 0, 0, 0, time.UTC)
	recs := make([]map[string]interface{}, 0, events)
	for i := 0; i < events; i++ {
		ts := night.Add(time.Duration(i*3) * time.Minute)
		action := adminActions[i%len(adminActions)]
		recs = append(recs, g.record(ts, arn, action, ip, region, "", false))
	}
	return recs
}

// bruteForce: a run of AccessDenied failures from rotating IPs, then a success.
func (g *generator) bruteForce(arn string, events int) []map[string]interface{} {
	region := g.regions[0]
	recs := make([]map[string]interface{}, 0, events)
	for i := 0; i < events; i++ {
		ts := g.base.Add(time.Duration(i*30) * time.Second)
		errCode := "AccessDenied"
		if i == events-1 {
			errCode = ""
		}
		recs = append(recs, g.record(ts, arn, "AssumeRole", gofakeit.IPv4Address(), region, errCode, false))
	}
	return recs
}

// regionHopper: the same principal active in every configured region within minutes.
func (g *generator) regionHopper(arn string, events int) []map[string]interface{} {
	recs := make([]map[string]interface{}, 0, events)
	for i := 0; i < events; i++ {
		ts := g.base.Add(time.Duration(i*2) * time.Minute)
		region := g.regions[i%len(g.regions)]
		ip := fmt.Sprintf("203.0.113.%d", (i%250)+1)
		recs = append(recs, g.record(ts, arn, pickAction(routineActions), ip, region, "", true))
	}
	return recs
}
