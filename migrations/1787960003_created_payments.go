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

		collection := core.NewBaseCollection("payments")

		collection.Fields.Add(
			&core.RelationField{Name: "registration", Required: true, CollectionId: registrations.Id, MaxSelect: 1},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"pending", "paid", "failed"}},
			&core.SelectField{Name: "method", MaxSelect: 1, Values: []string{"card", "bank_transfer"}},
			&core.TextField{Name: "session_ref", Required: true},
			&core.TextField{Name: "intent_ref"},
			// Decimal string; never a float.
			&core.TextField{Name: "amount"},
			&core.DateField{Name: "paid_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_payments_session_ref", true, "session_ref", "")
		collection.AddIndex("idx_payments_registration", false, "registration", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
