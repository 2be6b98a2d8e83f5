package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		registrations, err := app.FindCollectionByNameOrId("registrations")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("checkins")

		collection.Fields.Add(
			&core.RelationField{Name: "registration", Required: true, CollectionId: registrations.Id, MaxSelect: 1},
			&core.TextField{Name: "staff"},
			&core.BoolField{Name: "override"},
			&core.DateField{Name: "checked_in_at", Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		// The unique index is the admission exclusivity guarantee: a second
		// concurrent submit fails here instead of creating a duplicate row.
		collection.AddIndex("idx_checkins_registration", true, "registration", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("checkins")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
