package backend

// Schema is portable between MySQL and SQLite. Timestamps are unix milliseconds.
const Schema = `
-- accounts
CREATE TABLE IF NOT EXISTS users (
	id VARCHAR(36) PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(16) NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(36) NOT NULL,
	expires_at BIGINT NOT NULL
);

-- orders
CREATE TABLE IF NOT EXISTS orders (
	id VARCHAR(36) PRIMARY KEY,
	user_id VARCHAR(36) NOT NULL,
	status VARCHAR(16) NOT NULL,
	total DECIMAL(12,2) NOT NULL,
	currency VARCHAR(8) NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
	order_id VARCHAR(36) NOT NULL,
	product_id VARCHAR(36) NOT NULL,
	name VARCHAR(255) NOT NULL,
	quantity INT NOT NULL,
	price DECIMAL(12,2) NOT NULL,
	PRIMARY KEY (order_id, product_id)
);

-- wishlist
CREATE TABLE IF NOT EXISTS wishlists (
	id VARCHAR(36) PRIMARY KEY,
	user_id VARCHAR(36) NOT NULL,
	product_id VARCHAR(36) NOT NULL,
	created_at BIGINT NOT NULL,
	UNIQUE (user_id, product_id)
);
`
