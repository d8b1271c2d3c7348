package menu

// Default returns the built-in café catalog, used when no menu file is
// configured. Prices are in Argentine pesos.
func Default() *Catalog {
	cat, err := New([]Item{
		{ID: 1, Category: "Cafetería", Name: "Café con leche", Price: 3500, Available: true},
		{ID: 2, Category: "Cafetería", Name: "Espresso", Price: 2800, Available: true},
		{ID: 3, Category: "Cafetería", Name: "Cortado", Price: 3000, Available: true},
		{ID: 4, Category: "Cafetería", Name: "Cappuccino", Price: 4200, Available: true},
		{ID: 5, Category: "Cafetería", Name: "Té", Price: 2500, Available: true},
		{ID: 6, Category: "Cafetería", Name: "Submarino", Price: 4000, Available: false},
		{ID: 7, Category: "Pastelería", Name: "Medialuna", Price: 1200, Available: true},
		{ID: 8, Category: "Pastelería", Name: "Croissant", Price: 1800, Available: true},
		{ID: 9, Category: "Pastelería", Name: "Torta de chocolate", Price: 4800, Available: true},
		{ID: 10, Category: "Sandwiches", Name: "Tostado de jamón y queso", Price: 5500, Available: true},
		{ID: 11, Category: "Bebidas frías", Name: "Jugo de naranja", Price: 3800, Available: true},
		{ID: 12, Category: "Bebidas frías", Name: "Licuado de banana", Price: 4500, Available: true},
		{ID: 13, Category: "Bebidas frías", Name: "Agua mineral", Price: 2000, Available: true},
	})
	if err != nil {
		panic("menu: default catalog invalid: " + err.Error())
	}
	return cat
}
