// Package schema defines the record model shared by the local replica
// store, the access scope resolver, and the sync engine.
//
// Every business row, regardless of table, is carried as a Record: a
// fixed envelope of ownership and sync metadata plus a free-form map of
// table-specific business fields. The envelope is what the core reasons
// about; business fields pass through opaquely.
//
// Wire format is flat JSON with snake_case keys, matching the remote
// store's row shape:
//
//	{
//	  "id": "…", "tenant_id": "…", "created_by": "…",
//	  "updated_at": 1724800000000, "synced": true,
//	  "name": "Ana", "document": "123"
//	}
//
// Business fields are flattened into the same object on marshal and
// recovered into Record.Fields on unmarshal.
package schema
