package tarantool

// Lua procedures evaluated on the server. A procedure body runs inside box.atomic,
// so the read and the write below cannot interleave with another request.

// registerScript inserts a user unless the id is taken.
// args: id, lab, cwi, created_at_ms
const registerScript = `
local id, lab, cwi, created_at = ...
return box.atomic(function()
    if box.space.users:get(id) ~= nil then
        return false
    end
    box.space.users:insert({id, false, lab, cwi, created_at})
    return true
end)
`

// verifiedScript lists verified user ids. The loop never yields, so the result is
// one consistent read of the space.
const verifiedScript = `
local ids = setmetatable({}, {__serialize = 'seq'})
for _, t in box.space.users.index.verified:pairs({true}) do
    table.insert(ids, t[1])
end
return ids
`

// voteScript appends a voter to one option unless the poll is missing, ended,
// the option does not exist or the voter is already in any option.
// args: poll_id, option_idx (0-based), voter_id, now_ms
const voteScript = `
local poll_id, idx, voter, now = ...
return box.atomic(function()
    local t = box.space.polls:get(poll_id)
    if t == nil then
        return 'not_found'
    end
    local options = {}
    local voted = false
    for i, o in ipairs(t[3]) do
        local voters = setmetatable({}, {__serialize = 'seq'})
        for j, v in ipairs(o.voters) do
            if v == voter then
                voted = true
            end
            voters[j] = v
        end
        options[i] = {label = o.label, voters = voters}
    end
    local option = options[idx + 1]
    if idx < 0 or option == nil then
        return 'invalid_option'
    end
    if now >= t[5] then
        return 'expired'
    end
    if voted then
        return 'already_voted'
    end
    table.insert(option.voters, voter)
    box.space.polls:update(poll_id, {{'=', 3, options}})
    return 'ok'
end)
`

const (
	voteOK            = "ok"
	voteNotFound      = "not_found"
	voteAlreadyVoted  = "already_voted"
	voteInvalidOption = "invalid_option"
	voteExpired       = "expired"
)
