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

		collection := core.NewBaseCollection("table_assignments")

		collection.Fields.Add(
			&core.RelationField{Name: "registration", Required: true, CollectionId: registrations.Id, MaxSelect: 1},
			&core.TextField{Name: "table_name"},
			&core.TextField{Name: "table_type"},
			&core.NumberField{Name: "seat_number", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_table_assignments_registration", true, "registration", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("table_assignments")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
