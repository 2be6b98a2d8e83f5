package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		guests, err := app.FindCollectionByNameOrId("guests")
		if err != nil {
			return err
		}
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("registrations")

		collection.Fields.Add(
			&core.RelationField{Name: "guest", Required: true, CollectionId: guests.Id, MaxSelect: 1},
			&core.RelationField{Name: "event", Required: true, CollectionId: events.Id, MaxSelect: 1},
			&core.SelectField{Name: "ticket_class", Required: true, MaxSelect: 1, Values: []string{"vip", "single", "pair"}},
			&core.SelectField{Name: "status", MaxSelect: 1, Values: []string{"pending", "approved"}},
			// Written at most once by the issuance lock; empty means not issued.
			&core.TextField{Name: "ticket_token"},
			&core.DateField{Name: "ticket_issued_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_registrations_guest_event", true, "guest, event", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("registrations")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
