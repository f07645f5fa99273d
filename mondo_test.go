package mondo_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/driver/engine"
	"github.com/mondolib/mondo/driver/engine/memstore"
	"github.com/mondolib/mondo/driver/engine/sqlitestore"
	"github.com/mondolib/mondo/filtertext"
	"github.com/mondolib/mondo/raw"
	"github.com/mondolib/mondo/typed"
)

type Player struct {
	ID     raw.ObjectID `mondo:"_id"`
	Name   string       `mondo:"name"`
	Team   string       `mondo:"team"`
	Score  int32        `mondo:"score"`
	Active bool         `mondo:"active"`
	Nick   *string      `mondo:"nick,omitempty"`
}

func (Player) CollectionName() string { return "players" }

func TestMain(m *testing.M) {
	typed.MustRegister[Player]()
	os.Exit(m.Run())
}

func newPlayers(t *testing.T, conn driver.Conn) *typed.Collection[Player] {
	t.Helper()
	c, err := typed.NewCollection[Player](conn)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	return c
}

func seedPlayers(t *testing.T, c *typed.Collection[Player]) []*Player {
	t.Helper()
	players := []*Player{
		{Name: "Ann", Team: "red", Score: 30, Active: true},
		{Name: "Bob", Team: "red", Score: 10, Active: true},
		{Name: "Cid", Team: "blue", Score: 20, Active: false},
	}
	if _, err := c.InsertMany(context.Background(), players); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	return players
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newPlayers(t, engine.New(memstore.New()))

	if err := c.CreateWithValidation(ctx); err != nil {
		t.Fatalf("CreateWithValidation: %v", err)
	}

	players := seedPlayers(t, c)
	for i, p := range players {
		if p.ID.IsZero() {
			t.Fatalf("players[%d] has no assigned id", i)
		}
	}

	// a second create with the same derived schema is idempotent
	if err := c.CreateWithValidation(ctx); err != nil {
		t.Fatalf("repeat CreateWithValidation: %v", err)
	}

	// reinserting a document with a taken id is a duplicate
	_, err := c.InsertOne(ctx, &Player{ID: players[0].ID, Name: "Imposter"})
	var dup *typed.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("reinsert err = %v, want DuplicateKeyError", err)
	}

	// find by a parsed textual filter
	f, err := filtertext.Parse[Player](`score >= 15 and name != "Cid"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := c.FindOne(ctx, f)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil || got.Name != "Ann" {
		t.Fatalf("FindOne = %+v, want Ann", got)
	}

	// find by id round-trips the assigned identifier
	byID, err := c.FindByID(ctx, players[2].ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if byID == nil || byID.Name != "Cid" {
		t.Fatalf("FindByID = %+v, want Cid", byID)
	}

	// sorted scan
	cur, err := c.Find(ctx, nil, typed.WithSort(typed.Desc(c.Model().MustPath("Score"))))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	all, err := cur.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Ann" || all[2].Name != "Bob" {
		t.Fatalf("sorted names = %v", names(all))
	}

	// multi-document update
	team := c.Model().MustPath("Team")
	res, err := c.UpdateMany(ctx,
		typed.Eq(team, "red"),
		typed.NewUpdate().Inc(c.Model().MustPath("Score"), int32(5)))
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if res.Matched != 2 || res.Modified != 2 {
		t.Fatalf("UpdateMany result = %+v", res)
	}

	// upsert inserts when nothing matches
	res, err = c.UpdateOne(ctx,
		typed.Eq(c.Model().MustPath("Name"), "Dee"),
		typed.NewUpdate().
			Set(team, "blue").
			Set(c.Model().MustPath("Score"), int32(15)).
			SetOnInsert(c.Model().MustPath("Active"), true),
		typed.WithUpsert())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res.UpsertedID == nil {
		t.Fatal("upsert reported no id")
	}
	dee, err := c.FindOne(ctx, typed.Eq(c.Model().MustPath("Name"), "Dee"))
	if err != nil {
		t.Fatalf("FindOne Dee: %v", err)
	}
	if dee == nil || dee.Team != "blue" || !dee.Active {
		t.Fatalf("upserted doc = %+v", dee)
	}

	// count and distinct reflect the upsert
	n, err := c.CountDocuments(ctx, typed.Eq(team, "blue"))
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 2 {
		t.Fatalf("blue count = %d, want 2", n)
	}
	teams, err := c.Distinct(ctx, team, nil)
	if err != nil {
		t.Fatalf("Distinct: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("distinct teams = %v", teams)
	}

	// aggregate: total score per team, in team order
	pipe := typed.NewPipeline().
		GroupBy(team, typed.Sum("total", c.Model().MustPath("Score"))).
		Raw(raw.D(raw.E("$sort", raw.D(raw.E("_id", raw.Int32(1))))))
	rcur, err := c.AggregateRaw(ctx, pipe)
	if err != nil {
		t.Fatalf("AggregateRaw: %v", err)
	}
	defer rcur.Close(ctx)
	var groups []string
	for rcur.Next(ctx) {
		groups = append(groups, raw.Format(rcur.Value()))
	}
	if err := rcur.Err(); err != nil {
		t.Fatalf("aggregate cursor: %v", err)
	}
	want := []string{`{"_id": "blue", "total": 35}`, `{"_id": "red", "total": 50}`}
	if len(groups) != 2 || groups[0] != want[0] || groups[1] != want[1] {
		t.Fatalf("groups = %v, want %v", groups, want)
	}

	// delete inactive players
	del, err := c.DeleteMany(ctx, typed.Eq(c.Model().MustPath("Active"), false))
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if del.Deleted != 1 {
		t.Fatalf("deleted %d, want 1", del.Deleted)
	}

	if err := c.Drop(ctx); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	left, err := c.CountDocuments(ctx, nil)
	if err != nil {
		t.Fatalf("count after drop: %v", err)
	}
	if left != 0 {
		t.Fatalf("%d documents after drop", left)
	}
}

func TestEqualityAfterNumericPromotion(t *testing.T) {
	ctx := context.Background()
	c := newPlayers(t, engine.New(memstore.New()))
	seedPlayers(t, c)

	// a wide-integer increment promotes the stored value to a 64-bit variant
	score := c.Model().MustPath("Score")
	res, err := c.UpdateMany(ctx, nil,
		typed.NewUpdate().Inc(typed.RawPath("score"), int64(1)))
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if res.Modified != 3 {
		t.Fatalf("modified %d, want 3", res.Modified)
	}

	// an equality filter lowered at the declared 32-bit width still matches
	got, err := c.FindOne(ctx, typed.Eq(score, int32(31)))
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil || got.Name != "Ann" {
		t.Fatalf("FindOne = %+v, want Ann", got)
	}
	n, err := c.CountDocuments(ctx, typed.Eq(score, int32(11)))
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestEndToEndSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := sqlitestore.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	c := newPlayers(t, engine.New(store))

	seedPlayers(t, c)

	got, err := c.FindOne(ctx, typed.Eq(c.Model().MustPath("Team"), "blue"))
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil || got.Name != "Cid" {
		t.Fatalf("FindOne = %+v, want Cid", got)
	}

	res, err := c.UpdateOne(ctx,
		typed.Eq(c.Model().MustPath("Name"), "Bob"),
		typed.NewUpdate().Set(c.Model().MustPath("Score"), int32(11)))
	if err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}
	if res.Modified != 1 {
		t.Fatalf("modified %d, want 1", res.Modified)
	}
	bob, err := c.FindOne(ctx, typed.Eq(c.Model().MustPath("Name"), "Bob"))
	if err != nil {
		t.Fatalf("FindOne Bob: %v", err)
	}
	if bob.Score != 11 {
		t.Fatalf("Bob score = %d, want 11", bob.Score)
	}
}

func names(ps []*Player) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
