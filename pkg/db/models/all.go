package models

// All lists every persisted model, used for embedded schema setup.
func All() []any {
	return []any{
		&Product{},
		&Account{},
		&Cart{},
		&CartLine{},
		&Order{},
		&OrderLine{},
		&InventoryMovement{},
		&OutboxEvent{},
	}
}
