package domtest

// TodoRaw declares the canonical todo schema used across the projection
// tests: scalar and custom attributes, composite types, a union with a
// tagged member, relationships, aggregates and a calculation with args.
const TodoRaw = `
name: app
naming: camel
entities:
  - name: user
    overrides:
      url_slug: URLSlug
    fields:
      - name: id
        type: uuid
      - name: name
        type: string
      - name: email
        type: string
      - name: url_slug
        type: string
  - name: comment
    fields:
      - name: id
        type: uuid
      - name: body
        type: string
      - name: rating
        type: int
      - name: author
        rel: user
  - name: todo
    table: todos
    fields:
      - name: id
        type: uuid
      - name: title
        type: string
      - name: completed
        type: bool
      - name: priority
        type: int
      - name: due_on
        type: date
      - name: created_at
        type: datetime
      - name: budget
        type: decimal
      - name: tags
        type:
          array: string
      - name: metadata
        type: opaque
      - name: content
        type:
          union:
            - name: text
              type: string
            - name: note
              tag: kind
              tag_value: note
              type:
                record:
                  - name: body
                    type: string
                  - name: pinned
                    type: bool
      - name: attachments
        type:
          array:
            union:
              - name: link
                type:
                  record:
                    - name: url
                      type: string
              - name: file
                type:
                  record:
                    - name: name
                      type: string
                    - name: size
                      type: int
      - name: position
        type:
          tuple:
            - name: lat
              type: float
            - name: lng
              type: float
      - name: settings
        type:
          map:
            - name: color
              type: string
            - name: notify
              type: bool
      - name: assignee
        rel: user
      - name: comments
        rel: comment
        many: true
      - name: comment_count
        aggr: count
        path: comments
      - name: has_comments
        aggr: exists
        path: comments
      - name: rating_total
        aggr: sum
        path: comments
        of: rating
      - name: last_comment_body
        aggr: first
        path: comments
        of: body
      - name: display_name
        calc: true
        type: string
        args:
          - name: prefix
            type: string
            required: true
`

// TodoFixRaw holds the record data. Relationship links follow the store
// conventions: assignee_id and author_id for to-one, todo_id back refs for
// the to-many comments.
const TodoFixRaw = `
user:
  - id: bbbbbbbb-0000-0000-0000-000000000001
    name: 'Ana Gram'
    email: 'ana@example.org'
    url_slug: 'ana-gram'
  - id: bbbbbbbb-0000-0000-0000-000000000002
    name: 'Bo Katan'
    email: 'bo@example.org'
    url_slug: 'bo-katan'
comment:
  - id: cccccccc-0000-0000-0000-000000000001
    body: 'Looks leaky'
    rating: 4
    author_id: bbbbbbbb-0000-0000-0000-000000000002
    todo_id: aaaaaaaa-0000-0000-0000-000000000001
  - id: cccccccc-0000-0000-0000-000000000002
    body: 'Fixed upstream'
    rating: 2
    author_id: bbbbbbbb-0000-0000-0000-000000000001
    todo_id: aaaaaaaa-0000-0000-0000-000000000001
  - id: cccccccc-0000-0000-0000-000000000003
    body: 'Numbers approved'
    rating: 5
    author_id: bbbbbbbb-0000-0000-0000-000000000001
    todo_id: aaaaaaaa-0000-0000-0000-000000000002
todo:
  - id: aaaaaaaa-0000-0000-0000-000000000001
    title: 'Fix the sink'
    completed: false
    priority: 2
    due_on: 2024-03-05
    created_at: 2024-03-01T10:30:00Z
    budget: '150.75'
    tags: [home, urgent]
    metadata: {source: import, legacy_id: 42}
    content: {text: 'Call the plumber first'}
    attachments:
      - link: {url: 'https://example.org/sink'}
      - file: {name: 'manual.pdf', size: 2048}
    position: [52.52, 13.405]
    settings: {color: red, notify: true}
    assignee_id: bbbbbbbb-0000-0000-0000-000000000001
  - id: aaaaaaaa-0000-0000-0000-000000000002
    title: 'Write report'
    completed: true
    priority: 1
    due_on: 2024-03-10
    created_at: 2024-03-02T09:00:00Z
    budget: '0'
    tags: []
    metadata: {}
    content:
      note: {body: 'Quarterly numbers', pinned: true}
    attachments: []
    position: [48.137, 11.575]
    settings: {color: blue, notify: false}
    assignee_id: bbbbbbbb-0000-0000-0000-000000000002
  - id: aaaaaaaa-0000-0000-0000-000000000003
    title: 'Water plants'
    completed: false
    priority: 3
    due_on: 2024-03-12
    created_at: 2024-03-03T08:15:00Z
    budget: '4.50'
    tags: [home]
    metadata: {source: manual}
    content: {text: 'Only the ferns'}
    attachments: []
    position: [50.11, 8.68]
    settings: {color: green, notify: false}
    assignee_id: null
  - id: aaaaaaaa-0000-0000-0000-000000000004
    title: 'Book flights'
    completed: false
    priority: 1
    due_on: 2024-04-01
    created_at: 2024-03-04T14:00:00Z
    budget: '980.00'
    tags: [travel]
    metadata: {}
    content: {text: 'Window seat'}
    attachments: []
    position: [40.71, -74.0]
    settings: {color: red, notify: true}
    assignee_id: bbbbbbbb-0000-0000-0000-000000000001
  - id: aaaaaaaa-0000-0000-0000-000000000005
    title: 'Renew passport'
    completed: false
    priority: 2
    due_on: 2024-05-20
    created_at: 2024-03-05T11:45:00Z
    budget: '60'
    tags: [travel, urgent]
    metadata: {office: downtown}
    content: {text: 'Bring photos'}
    attachments: []
    position: [34.05, -118.24]
    settings: {color: blue, notify: true}
    assignee_id: bbbbbbbb-0000-0000-0000-000000000002
`

// TodoFixture parses the todo schema and dataset.
func TodoFixture() (*Fixture, error) { return New(TodoRaw, TodoFixRaw) }
