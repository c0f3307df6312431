package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedUsers(ctx, pool)
	seedMenu(ctx, pool)
	seedDiscounts(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	users := []struct {
		Name  string
		Email string
		Role  string
	}{
		{"Admin User", "admin@resto.com", "admin"},
		{"Kitchen Staff", "kitchen@resto.com", "staff"},
		{"Budi Santoso", "budi@example.com", "customer"},
		{"Siti Aminah", "siti@example.com", "customer"},
		{"Andi Pratama", "andi@example.com", "customer"},
		{"Dewi Lestari", "dewi@example.com", "customer"},
	}

	log.Println("Seeding Users...")
	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (email, password_hash, full_name, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name, role = EXCLUDED.role`,
			u.Email, hash, u.Name, u.Role)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
	}
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool) {
	categories := []struct {
		Name     string
		Slug     string
		Position int
	}{
		{"Appetizers", "appetizers", 1},
		{"Mains", "mains", 2},
		{"Grill", "grill", 3},
		{"Desserts", "desserts", 4},
		{"Drinks", "drinks", 5},
	}

	log.Println("Seeding Menu Categories...")
	categoryIDs := map[string]string{}
	for _, c := range categories {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO menu_categories (name, slug, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, position = EXCLUDED.position
			RETURNING id::text`, c.Name, c.Slug, c.Position).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", c.Slug, err)
		}
		categoryIDs[c.Slug] = id
	}

	items := []struct {
		Category  string
		Name      string
		Slug      string
		Desc      string
		Price     string
		Available bool
		Stock     *int32
	}{
		{"appetizers", "Spring Rolls", "spring-rolls", "Crispy vegetable rolls with sweet chili dip", "35000", true, nil},
		{"appetizers", "Chicken Satay", "chicken-satay", "Six skewers with peanut sauce", "45000", true, nil},
		{"mains", "Nasi Goreng Special", "nasi-goreng-special", "Fried rice with prawns and a fried egg", "65000", true, nil},
		{"mains", "Beef Rendang", "beef-rendang", "Slow-braised beef in coconut and spices", "85000", true, ptr(20)},
		{"mains", "Mie Ayam", "mie-ayam", "Chicken noodles with wontons", "48000", true, nil},
		{"grill", "Grilled Snapper", "grilled-snapper", "Whole snapper with sambal matah", "120000", true, ptr(10)},
		{"grill", "Iga Bakar", "iga-bakar", "Grilled beef ribs with kecap glaze", "135000", false, nil},
		{"desserts", "Es Campur", "es-campur", "Shaved ice with jellies and condensed milk", "30000", true, nil},
		{"desserts", "Pisang Goreng", "pisang-goreng", "Fried banana with palm sugar ice cream", "32000", true, nil},
		{"drinks", "Es Teh Manis", "es-teh-manis", "Sweet iced tea", "12000", true, nil},
		{"drinks", "Kopi Tubruk", "kopi-tubruk", "Traditional unfiltered coffee", "18000", true, nil},
	}

	log.Println("Seeding Menu Items...")
	for _, it := range items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			log.Fatalf("Bad price for %s: %v", it.Slug, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO menu_items (category_id, name, slug, description, price, is_available, stock_limit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (slug) DO UPDATE SET
				category_id = EXCLUDED.category_id,
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				is_available = EXCLUDED.is_available,
				stock_limit = EXCLUDED.stock_limit,
				updated_at = now()`,
			categoryIDs[it.Category], it.Name, it.Slug, it.Desc, price, it.Available, it.Stock)
		if err != nil {
			log.Fatalf("Failed to seed menu item %s: %v", it.Slug, err)
		}
	}
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) {
	now := time.Now()
	discounts := []struct {
		Code         string
		Kind         string
		Value        string
		MinOrder     string
		ValidTo      *time.Time
		UsageLimit   *int32
		PerUserLimit *int32
	}{
		{"HEMAT10", "percentage", "10", "50000", ptrTime(now.AddDate(1, 0, 0)), nil, ptr(3)},
		{"MAKAN25K", "fixed", "25000", "150000", ptrTime(now.AddDate(0, 6, 0)), ptr(500), ptr(1)},
		{"GRANDOPENING", "percentage", "50", "0", ptrTime(now.AddDate(0, 1, 0)), ptr(100), ptr(1)},
	}

	log.Println("Seeding Discount Codes...")
	for _, d := range discounts {
		value, err := decimal.NewFromString(d.Value)
		if err != nil {
			log.Fatalf("Bad value for %s: %v", d.Code, err)
		}
		minOrder, err := decimal.NewFromString(d.MinOrder)
		if err != nil {
			log.Fatalf("Bad min order for %s: %v", d.Code, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO discount_codes (code, kind, value, min_order_total, valid_from, valid_to, usage_limit, per_user_limit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (code) DO UPDATE SET
				kind = EXCLUDED.kind,
				value = EXCLUDED.value,
				min_order_total = EXCLUDED.min_order_total,
				valid_to = EXCLUDED.valid_to,
				usage_limit = EXCLUDED.usage_limit,
				per_user_limit = EXCLUDED.per_user_limit,
				updated_at = now()`,
			d.Code, d.Kind, value, minOrder, now, d.ValidTo, d.UsageLimit, d.PerUserLimit)
		if err != nil {
			log.Fatalf("Failed to seed discount %s: %v", d.Code, err)
		}
	}
}

func ptr(v int32) *int32 { return &v }

func ptrTime(t time.Time) *time.Time { return &t }
